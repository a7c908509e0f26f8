// Package parsers turns raw channel text into transaction candidates.
//
// Notification parsers are keyed by Android package name in a Registry.
// Each is an ordered list of matchers evaluated until one answers. Bank SMS,
// forwarded chat messages, OCR text and file exports (CSV, XLSX, OFX) have
// their own entry points.
package parsers

import (
	"sort"

	"golang-ledger-ingestion/internal/models"
)

// AlertLevel tells the chat layer how urgently to surface a capture
type AlertLevel string

const (
	AlertNormal    AlertLevel = "normal"
	AlertImmediate AlertLevel = "immediate"
)

// App categories
const (
	AppUPI      = "upi"
	AppPOS      = "pos"
	AppPlatform = "platform"
	AppBank     = "bank"
)

// Entry describes one monitored app
type Entry struct {
	Name           string
	Category       string
	Parser         Parser
	BaseConfidence float64
	AlertLevel     AlertLevel
	// Platform is the marketplace name used for order/settlement accounting.
	// Empty for non-marketplace apps.
	Platform string
}

// Parse runs the entry's matchers
func (e Entry) Parse(title, content string) (models.Candidate, bool) {
	return e.Parser.Parse(title, content)
}

// Registry maps package names to parsers
type Registry struct {
	entries map[string]Entry
}

// NewEmptyRegistry returns a registry with no apps
func NewEmptyRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// BankPackages are banking apps sharing one notification parser
var BankPackages = []string{
	"com.sbi.SBIFreedomPlus",
	"com.csam.icici.bank.imobile",
	"com.hdfc.retail.banking",
	"com.axis.mobile",
	"com.kotak.mobile.banking",
}

// NewRegistry returns a registry with the default Indian payment, POS,
// marketplace and banking apps.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()

	r.Register("com.google.android.apps.nbu.paisa.user", Entry{Name: "Google Pay", Category: AppUPI, Parser: GPayParser(), BaseConfidence: 0.92, AlertLevel: AlertNormal})
	r.Register("com.phonepe.app", Entry{Name: "PhonePe", Category: AppUPI, Parser: PhonePeParser(), BaseConfidence: 0.90, AlertLevel: AlertNormal})
	r.Register("net.one97.paytm", Entry{Name: "Paytm", Category: AppUPI, Parser: PaytmParser(), BaseConfidence: 0.88, AlertLevel: AlertNormal})
	r.Register("in.org.npci.upiapp", Entry{Name: "BHIM", Category: AppUPI, Parser: BHIMParser(), BaseConfidence: 0.90, AlertLevel: AlertNormal})

	r.Register("com.pinelabs.masterapp", Entry{Name: "Pine Labs", Category: AppPOS, Parser: PineLabsParser(), BaseConfidence: 0.88, AlertLevel: AlertNormal})
	r.Register("com.razorpay.payments.app", Entry{Name: "Razorpay", Category: AppPOS, Parser: RazorpayParser(), BaseConfidence: 0.88, AlertLevel: AlertNormal})
	r.Register("com.petpooja.app", Entry{Name: "Petpooja", Category: AppPOS, Parser: PetpoojaParser(), BaseConfidence: 0.85, AlertLevel: AlertImmediate})
	r.Register("com.instamojo.app", Entry{Name: "Instamojo", Category: AppPOS, Parser: InstamojoParser(), BaseConfidence: 0.88, AlertLevel: AlertNormal})

	r.Register("in.swiggy.partner.app", Entry{Name: "Swiggy Partner", Category: AppPlatform, Parser: SwiggyParser(), BaseConfidence: 0.90, AlertLevel: AlertImmediate, Platform: "Swiggy"})
	r.Register("com.application.zomato.merchant", Entry{Name: "Zomato Partner", Category: AppPlatform, Parser: ZomatoParser(), BaseConfidence: 0.90, AlertLevel: AlertImmediate, Platform: "Zomato"})
	r.Register("com.amazon.sellermobile.android", Entry{Name: "Amazon Seller", Category: AppPlatform, Parser: AmazonParser(), BaseConfidence: 0.85, AlertLevel: AlertNormal, Platform: "Amazon"})
	r.Register("com.flipkart.seller", Entry{Name: "Flipkart Seller", Category: AppPlatform, Parser: FlipkartParser(), BaseConfidence: 0.85, AlertLevel: AlertNormal, Platform: "Flipkart"})

	bank := BankAppParser()
	for _, pkg := range BankPackages {
		r.Register(pkg, Entry{Name: "Banking App", Category: AppBank, Parser: bank, BaseConfidence: 0.85, AlertLevel: AlertNormal})
	}

	return r
}

// Register adds or replaces the entry for a package
func (r *Registry) Register(pkg string, e Entry) {
	r.entries[pkg] = e
}

// Lookup returns the entry for a package
func (r *Registry) Lookup(pkg string) (Entry, bool) {
	e, ok := r.entries[pkg]
	return e, ok
}

// MonitoredPackages lists registered packages in sorted order
func (r *Registry) MonitoredPackages() []string {
	pkgs := make([]string, 0, len(r.entries))
	for pkg := range r.entries {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
