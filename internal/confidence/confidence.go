// Package confidence scores captured events by channel and decides whether
// they can be booked without asking the owner.
package confidence

// Decision is what to do with a captured transaction
type Decision string

const (
	AutoConfirm Decision = "auto_confirm"
	AskOwner    Decision = "ask_owner"
	Skip        Decision = "skip"
)

const (
	// AutoConfirmThreshold is the lowest score booked without asking
	AutoConfirmThreshold = 0.80
	// AskOwnerThreshold is the lowest score worth a confirmation prompt
	AskOwnerThreshold = 0.60
	// DefaultScore applies to unknown channel/subtype pairs
	DefaultScore = 0.50
)

var scores = map[string]float64{
	"sms:with_ref":    0.90,
	"sms:without_ref": 0.80,

	"notification:upi_with_ref":        0.92,
	"notification:upi_without_ref":     0.75,
	"notification:pos":                 0.88,
	"notification:platform_order":      0.90,
	"notification:platform_settlement": 0.95,
	"notification:bank":                0.85,

	"voice:clear":     0.75,
	"voice:ambiguous": 0.50,

	"photo:printed":     0.80,
	"photo:handwritten": 0.60,
	"photo:screenshot":  0.90,

	"forwarded:parsed":  0.75,
	"forwarded:partial": 0.60,

	"bulk:csv":   0.95,
	"bulk:pdf":   0.90,
	"bulk:photo": 0.75,

	"eod:confirmed": 1.00,
	"eod:gap_fill":  0.70,
}

// Score returns the base confidence for a channel and subtype
func Score(channel, subtype string) float64 {
	if s, ok := scores[channel+":"+subtype]; ok {
		return s
	}
	return DefaultScore
}

// Decide maps a score to a decision. Both thresholds are inclusive.
func Decide(score float64) Decision {
	switch {
	case score >= AutoConfirmThreshold:
		return AutoConfirm
	case score >= AskOwnerThreshold:
		return AskOwner
	default:
		return Skip
	}
}

func ShouldAutoConfirm(score float64) bool { return score >= AutoConfirmThreshold }

func ShouldAskOwner(score float64) bool {
	return score >= AskOwnerThreshold && score < AutoConfirmThreshold
}

func ShouldSkip(score float64) bool { return score < AskOwnerThreshold }
