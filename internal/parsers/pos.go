package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
)

var (
	reSettlement       = regexp.MustCompile(`(?i)settlement`)
	rePineApproved     = regexp.MustCompile(`(?i)Transaction approved\s*₹\s*` + amountPattern + `\s*on\s*(\S+)`)
	rePineSale         = regexp.MustCompile(`(?i)Sale of\s*₹\s*` + amountPattern + `\s*[-–]\s*Card ending\s*(\d{4})`)
	reRazorpayFee      = regexp.MustCompile(`(?i)Razorpay fee`)
	reRazorpayReceived = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*received via\s*(\w+)`)
	reRazorpayPayID    = regexp.MustCompile(`(?i)Payment\s*ID[:\s]*(\S+)`)
	reRazorpayFrom     = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*from\s*(.+?)(?:\s*successful|$)`)
	reKOT              = regexp.MustCompile(`(?i)KOT`)
	rePetpoojaDone     = regexp.MustCompile(`(?i)Order\s*#\s*([A-Z0-9-]+)\s*completed\s*[-–]\s*₹\s*` + amountPattern)
	rePetpoojaTable    = regexp.MustCompile(`(?i)Table\s*(\d+)\s*[-–]\s*Bill\s*₹\s*` + amountPattern)
	rePetpoojaNew      = regexp.MustCompile(`(?i)New Order\s*#\s*([A-Z0-9-]+)\s*[-–]\s*₹\s*` + amountPattern)
	rePayout           = regexp.MustCompile(`(?i)payout`)
	reInstamojoLink    = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*payment link paid by\s*(.+?)(?:\.|$)`)
	reInstamojoPayment = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*received`)
)

var razorpayMethods = map[string]models.Method{
	"upi":        models.MethodUPI,
	"card":       models.MethodCard,
	"netbanking": models.MethodBank,
	"wallet":     models.MethodWallet,
}

func settlement(name, counterparty string, confidence float64) Matcher {
	return keyword(name, reSettlement, fromContent, func(amount decimal.Decimal, _ Message) models.Candidate {
		c := candidate(models.TypeCredit, amount, confidence)
		c.Method = models.MethodBank
		c.Counterparty = counterparty
		c.IsSettlement = true
		return c
	})
}

// PineLabsParser recognizes Pine Labs terminal notifications
func PineLabsParser() Parser {
	return Parser{
		settlement("pinelabs_settlement", "Pine Labs Settlement", 0.88),
		shape("pinelabs_approved", rePineApproved, 1, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Method = models.MethodCard
			c.ReferenceID = strings.TrimSpace(m[2])
			return c
		}),
		shape("pinelabs_card_sale", rePineSale, 1, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Method = models.MethodCard
			c.Counterparty = "Card **" + m[2]
			return c
		}),
	}
}

// RazorpayParser recognizes Razorpay merchant notifications
func RazorpayParser() Parser {
	return Parser{
		settlement("razorpay_settlement", "Razorpay Settlement", 0.88),
		keyword("razorpay_fee", reRazorpayFee, fromContent, func(amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeDebit, amount, 0.88)
			c.Method = models.MethodPlatform
			c.Counterparty = "Razorpay Fee"
			c.Category = "platform_fee"
			return c
		}),
		shape("razorpay_received_via", reRazorpayReceived, 1, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			if method, ok := razorpayMethods[strings.ToLower(m[2])]; ok {
				c.Method = method
			}
			if ref := reRazorpayPayID.FindStringSubmatch(msg.Content); ref != nil {
				c.ReferenceID = ref[1]
			}
			return c
		}),
		shape("razorpay_payment_from", reRazorpayFrom, 1, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Counterparty = strings.TrimSpace(m[2])
			return c
		}),
	}
}

// PetpoojaParser recognizes Petpooja restaurant POS notifications
func PetpoojaParser() Parser {
	return Parser{
		{
			Name: "petpooja_kot",
			Match: func(msg Message) (models.Candidate, Verdict) {
				if reKOT.MatchString(msg.Content) && !strings.Contains(msg.Content, "₹") {
					return models.Candidate{}, Rejected
				}
				return models.Candidate{}, NoMatch
			},
		},
		shape("petpooja_order_completed", rePetpoojaDone, 2, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.85)
			c.Method = models.MethodPlatform
			c.OrderID = m[1]
			return c
		}),
		shape("petpooja_table_bill", rePetpoojaTable, 2, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.85)
			c.Method = models.MethodPlatform
			c.Counterparty = "Table " + m[1]
			return c
		}),
		shape("petpooja_new_order", rePetpoojaNew, 2, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.70)
			c.Method = models.MethodPlatform
			c.OrderID = m[1]
			c.Category = "platform_pending"
			return c
		}),
	}
}

// InstamojoParser recognizes Instamojo notifications
func InstamojoParser() Parser {
	return Parser{
		keyword("instamojo_payout", rePayout, fromContent, func(amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Method = models.MethodBank
			c.Counterparty = "Instamojo Payout"
			c.IsSettlement = true
			return c
		}),
		shape("instamojo_payment_link", reInstamojoLink, 1, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			c := candidate(models.TypeCredit, amount, 0.88)
			c.Counterparty = strings.TrimSpace(m[2])
			return c
		}),
		shape("instamojo_payment_received", reInstamojoPayment, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return candidate(models.TypeCredit, amount, 0.88)
		}),
	}
}
