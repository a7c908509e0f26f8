package parsers

import (
	"regexp"
	"strings"

	"golang-ledger-ingestion/internal/models"
)

var (
	reBankCredited     = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*credited to\s*(?:A/c|account)\s*[X*x]*(\d{4})`)
	reBankDebited      = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*debited from\s*(?:A/c|account)\s*[X*x]*(\d{4})`)
	reBankCreditedDesc = regexp.MustCompile(`(?i)credited.*?(\d{4})\.\s*(.+?)(?:\.\s*Bal|$)`)
	reBankDebitedDesc  = regexp.MustCompile(`(?i)debited.*?(\d{4})\.\s*(.+?)(?:\.\s*Bal|$)`)
	reBankCreditCue    = regexp.MustCompile(`(?i)credited|received|deposited`)
	reBankDebitCue     = regexp.MustCompile(`(?i)debited|withdrawn|sent|paid`)
)

const maxCounterpartyLen = 50

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func accountMovement(name string, re, desc *regexp.Regexp, t models.TxnType) Matcher {
	return Matcher{
		Name: name,
		Match: func(msg Message) (models.Candidate, Verdict) {
			text := msg.Combined()
			m := re.FindStringSubmatch(text)
			if m == nil {
				return models.Candidate{}, NoMatch
			}
			amount, ok := toAmount(m[1])
			if !ok {
				return models.Candidate{}, Rejected
			}
			c := candidate(t, amount, 0.85)
			c.Method = models.MethodBank
			c.Account = m[2]
			if d := desc.FindStringSubmatch(text); d != nil {
				c.Counterparty = truncate(strings.TrimSpace(d[2]), maxCounterpartyLen)
			}
			c.ReferenceID = extractUPIRef(text)
			return c, Matched
		},
	}
}

var promotion = Matcher{
	Name: "bank_promotion",
	Match: func(msg Message) (models.Candidate, Verdict) {
		if isPromotion(msg.Combined()) {
			return models.Candidate{}, Rejected
		}
		return models.Candidate{}, NoMatch
	},
}

// BankAppParser recognizes notifications from the banks' own apps. OTPs and
// offers are rejected the same way as bank SMS.
func BankAppParser() Parser {
	return Parser{
		reject("bank_otp", reOTP, fromCombined),
		promotion,
		accountMovement("bank_credited_account", reBankCredited, reBankCreditedDesc, models.TypeCredit),
		accountMovement("bank_debited_account", reBankDebited, reBankDebitedDesc, models.TypeDebit),
		{
			Name: "bank_amount_with_cue",
			Match: func(msg Message) (models.Candidate, Verdict) {
				text := msg.Combined()
				amount, ok := extractAmount(text)
				if !ok {
					return models.Candidate{}, NoMatch
				}
				var t models.TxnType
				switch {
				case reBankCreditCue.MatchString(text):
					t = models.TypeCredit
				case reBankDebitCue.MatchString(text):
					t = models.TypeDebit
				default:
					return models.Candidate{}, NoMatch
				}
				c := candidate(t, amount, 0.70)
				c.Method = models.MethodBank
				c.ReferenceID = extractUPIRef(text)
				return c, Matched
			},
		},
	}
}
