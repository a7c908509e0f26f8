package parsers

import (
	"regexp"
	"strings"
	"time"

	"golang-ledger-ingestion/internal/confidence"
	"golang-ledger-ingestion/internal/models"
)

var (
	reOTP        = regexp.MustCompile(`(?i)OTP|One Time Password|verification code`)
	rePromo      = regexp.MustCompile(`(?i)offer|cashback|reward|EMI|loan|insurance|credit card`)
	reMovedMoney = regexp.MustCompile(`(?i)credited|debited`)
	reCallToAct  = regexp.MustCompile(`(?i)apply now|click|tap here|know more|T&C`)
	smsAmounts   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Rs\.?|INR|₹)\s*` + amountPattern),
		regexp.MustCompile(`(?i)(?:amount|amt)\s*(?:of\s*)?(?:Rs\.?|INR|₹)\s*` + amountPattern),
		regexp.MustCompile(`(?i)([\d,]+(?:\.\d{2}))\s*(?:has been|is)\s*(?:credited|debited)`),
	}
	reSMSCredit  = regexp.MustCompile(`(?i)credited|received|credit(?:ed)?|deposited`)
	reSMSDebit   = regexp.MustCompile(`(?i)debited|sent|debit(?:ed)?|withdrawn|paid|purchase`)
	reSMSAccount = regexp.MustCompile(`(?i)(?:a/c|acct?|account)\s*(?:no\.?\s*)?[X*x]*(\d{4})`)
	smsUPIRefs   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)UPI\s*(?:ref\.?|Ref\.?\s*(?:No\.?)?\s*:?\s*)(\d{6,12})`),
		regexp.MustCompile(`(?i)UPI\s*txn\s*(?:ref\.?\s*)?(\d{6,12})`),
		regexp.MustCompile(`(?i)UPI[:\s-]+(\d{6,12})`),
		regexp.MustCompile(`(?i)UPI/(\d{6,12})`),
	}
	smsMethods = []struct {
		re     *regexp.Regexp
		method models.Method
	}{
		{regexp.MustCompile(`(?i)NEFT`), models.MethodNEFT},
		{regexp.MustCompile(`(?i)IMPS`), models.MethodIMPS},
		{regexp.MustCompile(`(?i)RTGS`), models.MethodRTGS},
		{regexp.MustCompile(`(?i)ATM`), models.MethodATM},
		{regexp.MustCompile(`(?i)POS|purchase|merchant`), models.MethodPOS},
	}
	smsCounterparties = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:from|to|trf\s+(?:from|to)|transfer\s+(?:from|to))\s+([A-Z][A-Z\s]{2,30}?)(?:\s*\(|\s*\.|\s*-|\s*UPI|\s*Ref|\s*Avl|\s+via\b|$)`),
		regexp.MustCompile(`(?i)(?:by|via)\s+([A-Z][A-Z\s]{2,30}?)(?:\s*\(|\s*\.|\s*-|\s*UPI|\s*Ref|$)`),
		regexp.MustCompile(`(?i)VPA\s+(\S+@\S+)`),
	}
	reSpaces = regexp.MustCompile(`\s+`)
)

var bankSenders = []struct {
	bank  string
	codes []string
}{
	{"HDFC", []string{"HDFC"}},
	{"SBI", []string{"SBI"}},
	{"ICICI", []string{"ICICI"}},
	{"AXIS", []string{"AXIS"}},
	{"KOTAK", []string{"KOTAK"}},
	{"PNB", []string{"PNB"}},
	{"BOB", []string{"BOB"}},
	{"CANARA", []string{"CANARA", "CANBK"}},
	{"UNION", []string{"UNION", "UNBISMS"}},
	{"INDUSIND", []string{"INDUS", "IBKL"}},
	{"FEDERAL", []string{"FEDER", "FEDBK"}},
}

// IdentifyBank maps an SMS sender id such as "VM-HDFCBK" to a bank code
func IdentifyBank(sender string) string {
	s := strings.ToUpper(sender)
	for _, b := range bankSenders {
		for _, code := range b.codes {
			if strings.Contains(s, code) {
				return b.bank
			}
		}
	}
	return "UNKNOWN"
}

// isPromotion reports marketing text: an offer cue without money having
// moved, or any offer with a call to action
func isPromotion(text string) bool {
	if !rePromo.MatchString(text) {
		return false
	}
	return !reMovedMoney.MatchString(text) || reCallToAct.MatchString(text)
}

// ParseBankSMS extracts a transaction from a bank SMS. OTPs, promotions and
// messages without an amount or a direction yield no candidate.
func ParseBankSMS(sms models.SMS, now time.Time) (models.Candidate, bool) {
	body := sms.Body

	if reOTP.MatchString(body) {
		return models.Candidate{}, false
	}
	if isPromotion(body) {
		return models.Candidate{}, false
	}

	found := false
	var c models.Candidate
	for _, re := range smsAmounts {
		if m := re.FindStringSubmatch(body); m != nil {
			amount, ok := toAmount(m[1])
			if !ok {
				return models.Candidate{}, false
			}
			c = models.NewCandidate("", amount, models.MethodOther, 0)
			found = true
			break
		}
	}
	if !found {
		return models.Candidate{}, false
	}

	switch {
	case reSMSCredit.MatchString(body):
		c.Type = models.TypeCredit
	case reSMSDebit.MatchString(body):
		c.Type = models.TypeDebit
	default:
		return models.Candidate{}, false
	}

	if m := reSMSAccount.FindStringSubmatch(body); m != nil {
		c.Account = m[1]
	}

	method := models.Method("")
	for _, re := range smsUPIRefs {
		if m := re.FindStringSubmatch(body); m != nil {
			c.ReferenceID = m[1]
			method = models.MethodUPI
			break
		}
	}
	for _, sm := range smsMethods {
		if sm.re.MatchString(body) {
			method = sm.method
			break
		}
	}
	if method == "" {
		method = models.MethodOther
	}
	c.Method = method

	for _, re := range smsCounterparties {
		if m := re.FindStringSubmatch(body); m != nil {
			c.Counterparty = cleanCounterparty(m[1])
			break
		}
	}

	c.Bank = IdentifyBank(sms.Sender)
	c.TransactionDate = sms.Time(now)
	if c.ReferenceID != "" {
		c.Confidence = confidence.Score("sms", "with_ref")
	} else {
		c.Confidence = confidence.Score("sms", "without_ref")
	}
	return c, true
}

func cleanCounterparty(s string) string {
	s = reSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.NewReplacer("(", "", ")", "").Replace(s)
	return truncate(s, maxCounterpartyLen)
}
