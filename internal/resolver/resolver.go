// Package resolver maps UPI payment identities to known contacts.
package resolver

import (
	"context"
	"regexp"
	"strings"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// Store is the contact and VPA map access the resolver needs
type Store interface {
	GetVPAMapping(ctx context.Context, vpa string) (*models.VPAMapping, error)
	SaveVPAMapping(ctx context.Context, m models.VPAMapping) error
	FindContactsByPhoneSuffix(ctx context.Context, digits string) ([]models.Contact, error)
	FindContactsByName(ctx context.Context, fragment string) ([]models.Contact, error)
}

// Step names how a resolution was found
type Step string

const (
	StepCache Step = "cache"
	StepPhone Step = "phone"
	StepName  Step = "name"
)

// Resolution is the contact a VPA belongs to
type Resolution struct {
	ContactID   int64  `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Step        Step   `json:"step"`
}

var (
	reVPA       = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z]+`)
	rePhone     = regexp.MustCompile(`^\d{10}$`)
	nameEscaper = strings.NewReplacer("_", " ", ".", " ", "-", " ")
)

// Resolver looks up contacts for VPAs and remembers unambiguous answers
type Resolver struct {
	store  Store
	logger logger.Logger
}

// New creates a resolver over store
func New(store Store, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{store: store, logger: log.WithComponent("resolver")}
}

// Resolve finds the contact for vpa. It checks learned mappings first, then
// a 10-digit local part against phone numbers, then the local part against
// contact names. More than one hit is ambiguous and reports false; the
// resolver never guesses.
func (r *Resolver) Resolve(ctx context.Context, vpa string) (Resolution, bool, error) {
	vpa = strings.TrimSpace(vpa)
	if vpa == "" {
		return Resolution{}, false, nil
	}

	known, err := r.store.GetVPAMapping(ctx, vpa)
	if err != nil {
		return Resolution{}, false, err
	}
	if known != nil {
		return Resolution{ContactID: known.ContactID, ContactName: known.ContactName, Step: StepCache}, true, nil
	}

	at := strings.Index(vpa, "@")
	if at <= 0 {
		return Resolution{}, false, nil
	}
	local := vpa[:at]

	if rePhone.MatchString(local) {
		contacts, err := r.store.FindContactsByPhoneSuffix(ctx, local)
		if err != nil {
			return Resolution{}, false, err
		}
		switch len(contacts) {
		case 0:
		case 1:
			return r.learn(ctx, vpa, contacts[0], StepPhone)
		default:
			r.ambiguous(vpa, StepPhone, len(contacts))
			return Resolution{}, false, nil
		}
	}

	guess := strings.TrimSpace(strings.ToLower(nameEscaper.Replace(local)))
	if guess == "" {
		return Resolution{}, false, nil
	}
	contacts, err := r.store.FindContactsByName(ctx, guess)
	if err != nil {
		return Resolution{}, false, err
	}
	if len(contacts) == 1 {
		return r.learn(ctx, vpa, contacts[0], StepName)
	}
	if len(contacts) > 1 {
		r.ambiguous(vpa, StepName, len(contacts))
	}
	return Resolution{}, false, nil
}

func (r *Resolver) learn(ctx context.Context, vpa string, c models.Contact, step Step) (Resolution, bool, error) {
	if err := r.store.SaveVPAMapping(ctx, models.VPAMapping{VPA: vpa, ContactID: c.ID, ContactName: c.Name}); err != nil {
		return Resolution{}, false, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeWriteFailed, "failed to save VPA mapping")
	}

	r.logger.WithFields(logger.Fields{
		"vpa":        vpa,
		"contact_id": c.ID,
		"step":       step,
	}).Info("Learned VPA mapping")

	return Resolution{ContactID: c.ID, ContactName: c.Name, Step: step}, true, nil
}

// Remember stores vpa as belonging to a contact unless it is already mapped
func (r *Resolver) Remember(ctx context.Context, vpa string, contactID int64, name string) error {
	vpa = strings.TrimSpace(vpa)
	if vpa == "" || contactID == 0 {
		return nil
	}
	known, err := r.store.GetVPAMapping(ctx, vpa)
	if err != nil || known != nil {
		return err
	}
	_, _, err = r.learn(ctx, vpa, models.Contact{ID: contactID, Name: name}, StepCache)
	return err
}

func (r *Resolver) ambiguous(vpa string, step Step, matches int) {
	r.logger.WithFields(logger.Fields{
		"vpa":     vpa,
		"step":    step,
		"matches": matches,
	}).Debug("Ambiguous VPA left unresolved")
}

// ExtractVPA returns the first local@domain token in text
func ExtractVPA(text string) (string, bool) {
	m := reVPA.FindString(text)
	return m, m != ""
}
