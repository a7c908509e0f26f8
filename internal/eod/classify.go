package eod

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// IntentKind is what the owner meant by their end-of-day reply
type IntentKind string

const (
	IntentConfirmed      IntentKind = "confirmed"
	IntentDifferentTotal IntentKind = "different_total"
	IntentCorrections    IntentKind = "corrections"
	IntentAdditional     IntentKind = "additional"
)

// Intent is a classified reply. Amount is set for different_total and
// Corrections for corrections.
type Intent struct {
	Kind        IntentKind      `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Corrections string          `json:"corrections,omitempty"`
}

var (
	reTotalOverride = regexp.MustCompile(`(?i)total\s*(?:tha|hai|aaj|was|undi|irundhuchu)?\s*(?:₹|rs\.?|inr)?\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	reCorrection    = regexp.MustCompile(`cancel|hatao|nahi hua|miss|galat|wrong|thappu`)
)

// confirmPhrases covers the supported languages. Single words match only on
// word boundaries so that "ha" does not fire inside "tha".
var confirmPhrases = []string{
	"sahi hai", "correct", "haan", "ha", "theek hai", "ok",
	"sari", "correct aa", "ayyindi", "aamam", "howdu",
	"hya", "achha", "thik ache", "bari", "hau",
}

type phraseMatcher func(text string) bool

var confirmMatchers = buildConfirmMatchers(confirmPhrases)

func buildConfirmMatchers(phrases []string) []phraseMatcher {
	matchers := make([]phraseMatcher, 0, len(phrases))
	for _, phrase := range phrases {
		phrase := phrase
		if strings.Contains(phrase, " ") {
			matchers = append(matchers, func(text string) bool {
				return strings.Contains(text, phrase)
			})
			continue
		}
		re := regexp.MustCompile(`(?:^|[\s,;.!?])` + regexp.QuoteMeta(phrase) + `(?:$|[\s,;.!?])`)
		matchers = append(matchers, re.MatchString)
	}
	return matchers
}

// ClassifyResponse reads the owner's reply. A stated total wins over
// correction keywords, which win over confirmation; anything else is
// dictation of a missed transaction.
func ClassifyResponse(text string) Intent {
	if m := reTotalOverride.FindStringSubmatch(text); m != nil {
		amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && amount.IsPositive() {
			return Intent{Kind: IntentDifferentTotal, Amount: amount}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	if reCorrection.MatchString(lower) {
		return Intent{Kind: IntentCorrections, Corrections: text}
	}

	for _, match := range confirmMatchers {
		if match(lower) {
			return Intent{Kind: IntentConfirmed}
		}
	}

	return Intent{Kind: IntentAdditional}
}
