package parsers

import (
	"regexp"
	"strings"
	"time"

	"golang-ledger-ingestion/internal/models"
)

// Confidence of each forwarded-message strategy
const (
	ForwardedBankSMSConfidence = 0.75
	ForwardedUPIConfidence     = 0.70
	ForwardedGenericConfidence = 0.55
)

var (
	forwardHeaders = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^-{2,}\s*Forwarded message\s*-{2,}\s*\n?`),
		regexp.MustCompile(`(?im)^Forwarded from\s+.*\n?`),
		regexp.MustCompile(`(?im)^From:.*\n?`),
		regexp.MustCompile(`(?im)^Date:.*\n?`),
		regexp.MustCompile(`(?im)^Subject:.*\n?`),
		regexp.MustCompile(`(?im)^To:.*\n?`),
	}
	reForwardedTag = regexp.MustCompile(`(?i)\[Forwarded\]`)

	reFwdCredit = regexp.MustCompile(`(?i)\b(?:received|credited|got|credit)\b`)
	reFwdDebit  = regexp.MustCompile(`(?i)\b(?:sent|paid|debited|debit|payment)\b`)
	reFwdName   = regexp.MustCompile(`(?i)\b(?:from|to)\s+([A-Za-z][A-Za-z\s.]{1,40}?)(?:\s*[.!,]|\s*₹|\s*\(|\s*-|\s*UPI|\s*[Rr]ef|\s*on\b|\s*via\b|$)`)
	fwdRefs     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)UPI\s*(?:ref\.?|Ref\.?\s*(?:No\.?)?\s*:?\s*)(\d{6,12})`),
		regexp.MustCompile(`(?i)UPI\s*txn\s*(?:ref\.?\s*)?(\d{6,12})`),
		regexp.MustCompile(`(?i)UPI[:\s/-]+(\d{6,12})`),
		regexp.MustCompile(`(?i)(?:ref(?:erence)?|txn)\s*(?:id|no\.?|#)?\s*:?\s*(\d{6,12})`),
	}

	reGenericRsAmount = regexp.MustCompile(`(?i)(?:Rs\.?|INR)\s*` + amountPattern)
	reGenericCredit   = regexp.MustCompile(`(?i)\b(?:received|credited|credit|deposited|got|incoming)\b`)
	reGenericDebit    = regexp.MustCompile(`(?i)\b(?:sent|debited|debit|withdrawn|paid|purchase|outgoing|payment)\b`)
	genericMethods    = []struct {
		re     *regexp.Regexp
		method models.Method
	}{
		{regexp.MustCompile(`(?i)\bUPI\b`), models.MethodUPI},
		{regexp.MustCompile(`(?i)\bNEFT\b`), models.MethodNEFT},
		{regexp.MustCompile(`(?i)\bIMPS\b`), models.MethodIMPS},
		{regexp.MustCompile(`(?i)\bRTGS\b`), models.MethodRTGS},
		{regexp.MustCompile(`(?i)\bATM\b`), models.MethodATM},
		{regexp.MustCompile(`(?i)\bPOS\b`), models.MethodPOS},
	}
)

func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

// StripForwardingHeaders removes WhatsApp, Telegram and e-mail forwarding
// artifacts. Each header kind is removed once.
func StripForwardingHeaders(text string) string {
	for _, re := range forwardHeaders {
		text = replaceFirst(re, text)
	}
	text = reForwardedTag.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseForwarded extracts a transaction from a forwarded chat message. It
// tries the bank SMS grammar, then UPI app text, then a bare amount with a
// direction word.
func ParseForwarded(text string, now time.Time) (models.Candidate, bool) {
	clean := StripForwardingHeaders(text)
	if clean == "" {
		return models.Candidate{}, false
	}

	var (
		c  models.Candidate
		ok bool
	)
	if c, ok = ParseBankSMS(models.SMS{Body: clean}, now); ok {
		c.Confidence = ForwardedBankSMSConfidence
		c.Bank = ""
	} else if c, ok = parseUPIText(clean); !ok {
		c, ok = parseGenericAmount(clean)
	}
	if !ok {
		return models.Candidate{}, false
	}
	c.TransactionDate = now
	return c, true
}

func parseUPIText(text string) (models.Candidate, bool) {
	amount, ok := extractAmount(text)
	if !ok {
		return models.Candidate{}, false
	}

	var t models.TxnType
	switch {
	case reFwdCredit.MatchString(text):
		t = models.TypeCredit
	case reFwdDebit.MatchString(text):
		t = models.TypeDebit
	default:
		return models.Candidate{}, false
	}

	c := models.NewCandidate(t, amount, models.MethodUPI, ForwardedUPIConfidence)
	if m := reFwdName.FindStringSubmatch(text); m != nil {
		c.Counterparty = truncate(reSpaces.ReplaceAllString(strings.TrimSpace(m[1]), " "), maxCounterpartyLen)
	}
	for _, re := range fwdRefs {
		if m := re.FindStringSubmatch(text); m != nil {
			c.ReferenceID = m[1]
			break
		}
	}
	return c, true
}

func parseGenericAmount(text string) (models.Candidate, bool) {
	var raw string
	if m := reRupee.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := reGenericRsAmount.FindStringSubmatch(text); m != nil {
		raw = m[1]
	}
	amount, ok := toAmount(raw)
	if !ok {
		return models.Candidate{}, false
	}

	var t models.TxnType
	switch {
	case reGenericCredit.MatchString(text):
		t = models.TypeCredit
	case reGenericDebit.MatchString(text):
		t = models.TypeDebit
	default:
		return models.Candidate{}, false
	}

	method := models.MethodOther
	for _, gm := range genericMethods {
		if gm.re.MatchString(text) {
			method = gm.method
			break
		}
	}
	return models.NewCandidate(t, amount, method, ForwardedGenericConfidence), true
}
