package parsers

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
)

// Categories set by the marketplace parsers
const (
	CategoryPlatformPending = "platform_pending"
	CategoryDailySummary    = "daily_summary"
	CategoryReturn          = "return"
)

var (
	reSwiggyOrder    = regexp.MustCompile(`(?i)New order!\s*#\s*([A-Z0-9-]+)\s*[-–]\s*(.+?)\s*[-–]\s*₹\s*` + amountPattern)
	reSwiggyPayout   = regexp.MustCompile(`(?i)(?:Weekly|Daily)\s*payout[:\s]*₹\s*` + amountPattern)
	reSwiggySummary  = regexp.MustCompile(`(?i)Daily summary[:\s]*(\d+)\s*orders?,\s*₹\s*` + amountPattern)
	reZomatoOrder    = regexp.MustCompile(`(?i)Order\s*#\s*([A-Z0-9-]+)[:\s]*(.+?)\s*[-–]\s*₹\s*` + amountPattern)
	reZomatoNew      = regexp.MustCompile(`(?i)New order\s*#\s*([A-Z0-9-]+)\s*from\s*(.+?)(?:\.|$)`)
	reZomatoPayout   = regexp.MustCompile(`(?i)Payout processed[:\s]*₹\s*` + amountPattern)
	reZomatoEarnings = regexp.MustCompile(`(?i)Daily earnings[:\s]*₹\s*` + amountPattern + `\s*from\s*(\d+)\s*orders?`)
	reReturnRequest  = regexp.MustCompile(`(?i)return requested`)
	reAmazonDeposit  = regexp.MustCompile(`(?i)Payment of\s*₹\s*` + amountPattern + `\s*deposited`)
	reAmazonOrder    = regexp.MustCompile(`(?i)New order[:\s]*(.+?)\s*[-–]\s*₹\s*` + amountPattern)
	reReturnInit     = regexp.MustCompile(`(?i)return initiated`)
	reFlipkartSettle = regexp.MustCompile(`(?i)Settlement of\s*₹\s*` + amountPattern + `\s*completed`)
	reFlipkartPaid   = regexp.MustCompile(`(?i)₹\s*` + amountPattern + `\s*payment processed`)
	reFlipkartOrder  = regexp.MustCompile(`(?i)New order for\s+(.+?)(?:\.|$)`)
)

func pendingOrder(counterparty, orderID, items string, amount decimal.Decimal, confidence float64) models.Candidate {
	c := candidate(models.TypeCredit, amount, confidence)
	c.Method = models.MethodPlatform
	c.Counterparty = counterparty
	c.OrderID = orderID
	c.Items = strings.TrimSpace(items)
	c.Category = CategoryPlatformPending
	return c
}

func payout(counterparty string, amount decimal.Decimal, confidence float64) models.Candidate {
	c := candidate(models.TypeCredit, amount, confidence)
	c.Method = models.MethodBank
	c.Counterparty = counterparty
	c.IsSettlement = true
	return c
}

func dailySummary(counterparty string, amount decimal.Decimal) models.Candidate {
	c := candidate(models.TypeCredit, amount, 0.85)
	c.Method = models.MethodPlatform
	c.Counterparty = counterparty
	c.Category = CategoryDailySummary
	return c
}

func platformReturn(name string, trigger *regexp.Regexp, counterparty string) Matcher {
	return keyword(name, trigger, fromCombined, func(amount decimal.Decimal, msg Message) models.Candidate {
		c := candidate(models.TypeDebit, amount, 0.85)
		c.Method = models.MethodPlatform
		c.Counterparty = counterparty
		c.OrderID = extractOrderID(msg.Combined())
		c.Category = CategoryReturn
		return c
	})
}

// SwiggyParser recognizes Swiggy Partner notifications
func SwiggyParser() Parser {
	return Parser{
		shape("swiggy_new_order", reSwiggyOrder, 3, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			return pendingOrder("Swiggy", m[1], m[2], amount, 0.90)
		}),
		shape("swiggy_payout", reSwiggyPayout, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return payout("Swiggy Payout", amount, 0.90)
		}),
		shape("swiggy_daily_summary", reSwiggySummary, 2, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return dailySummary("Swiggy Daily Summary", amount)
		}),
	}
}

// ZomatoParser recognizes Zomato restaurant partner notifications
func ZomatoParser() Parser {
	return Parser{
		shape("zomato_order_amount", reZomatoOrder, 3, func(m []string, amount decimal.Decimal, _ Message) models.Candidate {
			return pendingOrder("Zomato", m[1], m[2], amount, 0.90)
		}),
		{
			Name: "zomato_new_order_from",
			Match: func(msg Message) (models.Candidate, Verdict) {
				m := reZomatoNew.FindStringSubmatch(msg.Content)
				if m == nil {
					return models.Candidate{}, NoMatch
				}
				amount, ok := extractAmount(msg.Content)
				if !ok {
					return models.Candidate{}, Rejected
				}
				return pendingOrder(strings.TrimSpace(m[2]), m[1], "", amount, 0.90), Matched
			},
		},
		shape("zomato_payout", reZomatoPayout, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return payout("Zomato Payout", amount, 0.90)
		}),
		shape("zomato_daily_earnings", reZomatoEarnings, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return dailySummary("Zomato Daily Summary", amount)
		}),
	}
}

// AmazonParser recognizes Amazon Seller notifications
func AmazonParser() Parser {
	return Parser{
		platformReturn("amazon_return_requested", reReturnRequest, "Amazon Return"),
		shape("amazon_payment_deposited", reAmazonDeposit, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return payout("Amazon Settlement", amount, 0.85)
		}),
		shape("amazon_new_order", reAmazonOrder, 2, func(m []string, amount decimal.Decimal, msg Message) models.Candidate {
			return pendingOrder("Amazon", extractOrderID(msg.Combined()), m[1], amount, 0.85)
		}),
	}
}

// FlipkartParser recognizes Flipkart Seller Hub notifications
func FlipkartParser() Parser {
	return Parser{
		platformReturn("flipkart_return_initiated", reReturnInit, "Flipkart Return"),
		shape("flipkart_settlement", reFlipkartSettle, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return payout("Flipkart Settlement", amount, 0.85)
		}),
		shape("flipkart_payment_processed", reFlipkartPaid, 1, func(_ []string, amount decimal.Decimal, _ Message) models.Candidate {
			return payout("Flipkart", amount, 0.85)
		}),
		{
			Name: "flipkart_new_order",
			Match: func(msg Message) (models.Candidate, Verdict) {
				m := reFlipkartOrder.FindStringSubmatch(msg.Content)
				if m == nil {
					return models.Candidate{}, NoMatch
				}
				amount, ok := extractAmount(msg.Combined())
				if !ok {
					return models.Candidate{}, Rejected
				}
				return pendingOrder("Flipkart", extractOrderID(msg.Combined()), m[1], amount, 0.85), Matched
			},
		},
	}
}
