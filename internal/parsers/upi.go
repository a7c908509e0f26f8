package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
)

// fallback fires when trigger matches text selected by on, reading the
// amount from text selected by amountFrom. Without an amount the next
// matcher gets a turn.
func fallback(name string, trigger *regexp.Regexp, on, amountFrom func(Message) string, build func(amount decimal.Decimal, msg Message) models.Candidate) Matcher {
	return Matcher{
		Name: name,
		Match: func(msg Message) (models.Candidate, Verdict) {
			if !trigger.MatchString(on(msg)) {
				return models.Candidate{}, NoMatch
			}
			amount, ok := extractAmount(amountFrom(msg))
			if !ok {
				return models.Candidate{}, NoMatch
			}
			return build(amount, msg), Matched
		},
	}
}

var (
	reGPayContent = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*(?:sent to|paid to|received from)\s*(.+?)(?:\.|$|\s*via|\s*UPI)`)
	reGPayPayment = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*received from\s*(.+?)(?:\.|$)`)
	reGPayYouPaid = regexp.MustCompile(`(?i)You paid\s*₹\s*` + amountPattern + `\s*to\s*(.+?)(?:\.|$|\s*UPI)`)
	reSentPaid    = regexp.MustCompile(`(?i)sent|paid`)
	reTitleDebit  = regexp.MustCompile(`(?i)sent|paid|payment to`)
	reAnything    = regexp.MustCompile(`₹`)
)

// GPayParser recognizes Google Pay notifications
func GPayParser() Parser {
	return Parser{
		shape("gpay_sent_paid_received", reGPayContent, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			t := models.TypeCredit
			if reSentPaid.MatchString(msg.Content) {
				t = models.TypeDebit
			}
			c := candidate(t, amount, 0.92)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("gpay_payment_received", reGPayPayment, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.92)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("gpay_you_paid", reGPayYouPaid, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.92)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		fallback("gpay_title_amount", reAnything, fromTitle, fromTitle, func(amount decimal.Decimal, msg Message) models.Candidate {
			t := models.TypeCredit
			if reTitleDebit.MatchString(msg.Title) {
				t = models.TypeDebit
			}
			return candidate(t, amount, 0.75)
		}),
	}
}

var (
	reCashback        = regexp.MustCompile(`(?i)cashback`)
	rePhonePeWallet   = regexp.MustCompile(`(?i)wallet.*transfer|transfer.*wallet|wallet.*bank`)
	reAutopay         = regexp.MustCompile(`(?i)autopay`)
	reAutopayPayee    = regexp.MustCompile(`(?i)(?:to|for)\s+(.+?)(?:\s+successful|\.|$|\s*Ref)`)
	rePhonePeSent     = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*sent to\s*(.+?)(?:\s*successfully|$|\.\s*Ref)`)
	rePhonePeReceived = regexp.MustCompile(`(?i)Received\s*₹\s*` + amountPattern + `\s*from\s*(.+?)(?:\.|$|\s*Ref)`)
	rePhonePePayment  = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*to\s*(.+?)(?:\s*successful|$)`)
	reTitleSent       = regexp.MustCompile(`(?i)Sent\s*₹`)
	reTitleReceived   = regexp.MustCompile(`(?i)Received\s*₹|Money Received`)
)

// PhonePeParser recognizes PhonePe notifications
func PhonePeParser() Parser {
	return Parser{
		keyword("phonepe_cashback", reCashback, fromCombined, func(amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.90)
			c.Method = models.MethodWallet
			c.Counterparty = "PhonePe Cashback"
			c.Category = "cashback"
			return c
		}),
		reject("phonepe_wallet_transfer", rePhonePeWallet, fromCombined),
		keyword("phonepe_autopay", reAutopay, fromCombined, func(amount decimal.Decimal, msg Message) models.Candidate {
			text := msg.Combined()
			c := candidate(models.TypeDebit, amount, 0.90)
			if m := reAutopayPayee.FindStringSubmatch(text); m != nil {
				c.Counterparty = strings.TrimSpace(m[1])
			}
			c.ReferenceID = extractUPIRef(text)
			c.Category = "recurring"
			return c
		}),
		shape("phonepe_sent", rePhonePeSent, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.90)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("phonepe_received", rePhonePeReceived, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.90)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("phonepe_payment_to", rePhonePePayment, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.90)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		fallback("phonepe_title_sent", reTitleSent, fromTitle, fromTitle, func(amount decimal.Decimal, _ Message) models.Candidate {
			return candidate(models.TypeDebit, amount, 0.75)
		}),
		fallback("phonepe_title_received", reTitleReceived, fromTitle, fromCombined, func(amount decimal.Decimal, _ Message) models.Candidate {
			return candidate(models.TypeCredit, amount, 0.75)
		}),
	}
}

var (
	rePaytmWalletTopUp = regexp.MustCompile(`(?i)added to Paytm Wallet`)
	rePaytmPaid        = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*paid to\s*(.+?)(?:\.|$|\s*Order)`)
	rePaytmOrderID     = regexp.MustCompile(`(?i)Order\s*ID[:\s]*([A-Z0-9-]+)`)
	rePaytmFromWallet  = regexp.MustCompile(`(?i)from Wallet`)
	rePaytmReceived    = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*received from\s*(.+?)(?:\.|$)`)
	rePaytmBusiness    = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*received\.\s*Total today[:\s]*₹\s*` + amountPattern)
	rePaytmPaymentFor  = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*for\s*(.+?)(?:\s*successful|$)`)
	reMoneyReceived    = regexp.MustCompile(`(?i)Money Received`)
)

func paytmMethod(content string) models.Method {
	if rePaytmFromWallet.MatchString(content) {
		return models.MethodWallet
	}
	return models.MethodUPI
}

// PaytmParser recognizes Paytm and Paytm for Business notifications
func PaytmParser() Parser {
	return Parser{
		reject("paytm_wallet_topup", rePaytmWalletTopUp, fromCombined),
		keyword("paytm_cashback", reCashback, fromCombined, func(amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Method = models.MethodWallet
			c.Counterparty = "Paytm Cashback"
			c.Category = "cashback"
			return c
		}),
		shape("paytm_paid_to", rePaytmPaid, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.88)
			c.Counterparty = strings.TrimSpace(m[2])
			c.Method = paytmMethod(msg.Content)
			if om := rePaytmOrderID.FindStringSubmatch(msg.Content); om != nil {
				c.ReferenceID = om[1]
			} else {
				c.ReferenceID = extractUPIRef(msg.Content)
			}
			return c
		}),
		shape("paytm_received_from", rePaytmReceived, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("paytm_business_received", rePaytmBusiness, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return candidate(models.TypeCredit, amount, 0.88)
		}),
		shape("paytm_payment_for", rePaytmPaymentFor, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.88)
			c.Counterparty = strings.TrimSpace(m[2])
			c.Method = paytmMethod(msg.Content)
			return c
		}),
		fallback("paytm_title_money_received", reMoneyReceived, fromTitle, fromCombined, func(amount decimal.Decimal, _ Message) models.Candidate {
			return candidate(models.TypeCredit, amount, 0.70)
		}),
	}
}

var (
	reBHIMPaid      = regexp.MustCompile(`(?i)Paid\s*₹\s*` + amountPattern + `\s*to\s*([^\s.]+@[^\s.]+)`)
	reBHIMReceived  = regexp.MustCompile(`(?i)Received\s*₹\s*` + amountPattern + `\s*from\s*([^\s.]+@[^\s.]+)`)
	reBHIMDebited   = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*debited from\s*A/c\s*(\d{4})`)
	reBHIMCredited  = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*credited to\s*A/c\s*(\d{4})`)
	reBHIMTitle     = regexp.MustCompile(`(?i)Transaction Successful|Money Received`)
	reBHIMCreditCue = regexp.MustCompile(`(?i)Received|credited`)
)

// BHIMParser recognizes BHIM notifications
func BHIMParser() Parser {
	return Parser{
		shape("bhim_paid_vpa", reBHIMPaid, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.90)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("bhim_received_vpa", reBHIMReceived, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.90)
			c.Counterparty = strings.TrimSpace(m[2])
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("bhim_debited_account", reBHIMDebited, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.90)
			c.Account = m[2]
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		shape("bhim_credited_account", reBHIMCredited, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.90)
			c.Account = m[2]
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
		fallback("bhim_title_status", reBHIMTitle, fromTitle, fromContent, func(amount decimal.Decimal, msg Message) models.Candidate {
			t := models.TypeDebit
			if reBHIMCreditCue.MatchString(msg.Combined()) {
				t = models.TypeCredit
			}
			c := candidate(t, amount, 0.75)
			c.ReferenceID = extractUPIRef(msg.Content)
			return c
		}),
	}
}
