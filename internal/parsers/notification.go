package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
)

// Message is the visible text of a notification
type Message struct {
	Title   string
	Content string
}

// Combined joins title and content the way the notification shade shows them
func (m Message) Combined() string {
	return m.Title + " " + m.Content
}

// Verdict is a matcher's answer
type Verdict int

const (
	// NoMatch lets the next matcher try
	NoMatch Verdict = iota
	// Matched stops with a candidate
	Matched
	// Rejected stops without a candidate: the text is not a transaction
	Rejected
)

// Matcher recognizes one notification shape
type Matcher struct {
	Name  string
	Match func(msg Message) (models.Candidate, Verdict)
}

// Parser is an ordered list of matchers; the first that does not answer
// NoMatch decides.
type Parser []Matcher

// Parse runs the matchers in order
func (p Parser) Parse(title, content string) (models.Candidate, bool) {
	msg := Message{Title: title, Content: content}
	for _, m := range p {
		c, verdict := m.Match(msg)
		switch verdict {
		case Matched:
			return c, true
		case Rejected:
			return models.Candidate{}, false
		}
	}
	return models.Candidate{}, false
}

// Names lists matcher names in evaluation order
func (p Parser) Names() []string {
	names := make([]string, len(p))
	for i, m := range p {
		names[i] = m.Name
	}
	return names
}

const amountPattern = `([\d,]+(?:\.\d{1,2})?)`

var (
	reRupee   = regexp.MustCompile(`₹\s*` + amountPattern)
	reUPIRef  = regexp.MustCompile(`(?i)(?:UPI\s*Ref|Ref\.?\s*(?:No|ID)?|Txn\s*(?:ID|No))[:\s]*(\d{10,})`)
	reOrderID = regexp.MustCompile(`(?i)#\s*([A-Z0-9-]{4,})`)
)

// toAmount reads a captured digit group. Non-positive values are not amounts.
func toAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

func extractAmount(text string) (decimal.Decimal, bool) {
	m := reRupee.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	return toAmount(m[1])
}

func extractUPIRef(text string) string {
	if m := reUPIRef.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func extractOrderID(text string) string {
	if m := reOrderID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func candidate(t models.TxnType, amount decimal.Decimal, confidence float64) models.Candidate {
	return models.NewCandidate(t, amount, models.MethodUPI, confidence)
}

// shape builds a matcher around one regular expression applied to the
// content. amountGroup selects the submatch holding the amount.
func shape(name string, re *regexp.Regexp, amountGroup int, build func(m []string, amount decimal.Decimal, msg Message) models.Candidate) Matcher {
	return Matcher{
		Name: name,
		Match: func(msg Message) (models.Candidate, Verdict) {
			m := re.FindStringSubmatch(msg.Content)
			if m == nil {
				return models.Candidate{}, NoMatch
			}
			amount, ok := toAmount(m[amountGroup])
			if !ok {
				return models.Candidate{}, Rejected
			}
			return build(m, amount, msg), Matched
		},
	}
}

// keyword builds a matcher that fires when trigger matches text selected by
// from, and then needs a ₹ amount somewhere in that text.
func keyword(name string, trigger *regexp.Regexp, from func(Message) string, build func(amount decimal.Decimal, msg Message) models.Candidate) Matcher {
	return Matcher{
		Name: name,
		Match: func(msg Message) (models.Candidate, Verdict) {
			text := from(msg)
			if !trigger.MatchString(text) {
				return models.Candidate{}, NoMatch
			}
			amount, ok := extractAmount(text)
			if !ok {
				return models.Candidate{}, Rejected
			}
			return build(amount, msg), Matched
		},
	}
}

// reject stops the list when trigger matches
func reject(name string, trigger *regexp.Regexp, from func(Message) string) Matcher {
	return Matcher{
		Name: name,
		Match: func(msg Message) (models.Candidate, Verdict) {
			if trigger.MatchString(from(msg)) {
				return models.Candidate{}, Rejected
			}
			return models.Candidate{}, NoMatch
		},
	}
}

func fromContent(m Message) string  { return m.Content }
func fromTitle(m Message) string    { return m.Title }
func fromCombined(m Message) string { return m.Combined() }
