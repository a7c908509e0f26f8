// Package dedup decides whether an incoming candidate is a transaction the
// ledger already holds, possibly seen through another channel.
//
// Three tiers are evaluated in order and the first match wins:
//  1. Reference: an active transaction carries the same reference id
//  2. Fingerprint: amount, calendar date and reference hash already logged
//  3. Fuzzy: same amount and direction from another channel within a short
//     window, unless both sides name clearly different counterparties
//
// Dedup state is explicit. After a new transaction is stored the caller
// must call RecordTransaction so later sightings can match its fingerprint.
//
// Example usage:
//
//	engine := dedup.NewEngine(store, dedup.DefaultConfig(), log)
//	res, err := engine.IsDuplicate(ctx, candidate, models.SourceSMS)
//	if err == nil && !res.IsDupe {
//		id, _ := store.InsertTransaction(ctx, txn)
//		_ = engine.RecordTransaction(ctx, candidate, models.SourceSMS, id)
//	}
package dedup

import (
	"fmt"
	"time"
)

// Tier identifies which check matched
type Tier int

const (
	// TierNone means the candidate is new
	TierNone Tier = iota

	// TierReference is an exact reference id match
	TierReference

	// TierFingerprint is a logged amount+date+reference hash
	TierFingerprint

	// TierFuzzy is an amount, direction and time window match across channels
	TierFuzzy
)

// String returns the string representation of Tier
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierReference:
		return "reference"
	case TierFingerprint:
		return "fingerprint"
	case TierFuzzy:
		return "fuzzy"
	default:
		return "unknown"
	}
}

// Config holds the dedup thresholds
type Config struct {
	// FuzzyWindow is how far apart two sightings may be for a fuzzy match
	FuzzyWindow time.Duration `json:"fuzzy_window"`

	// NameVetoThreshold rejects a fuzzy match when both records carry a
	// counterparty and their similarity is below it
	NameVetoThreshold float64 `json:"name_veto_threshold"`

	// Confidence reported for each tier
	ReferenceConfidence   float64 `json:"reference_confidence"`
	FingerprintConfidence float64 `json:"fingerprint_confidence"`
	FuzzyConfidence       float64 `json:"fuzzy_confidence"`
}

// DefaultConfig returns the production thresholds
func DefaultConfig() *Config {
	return &Config{
		FuzzyWindow:           10 * time.Minute,
		NameVetoThreshold:     0.5,
		ReferenceConfidence:   1.0,
		FingerprintConfidence: 0.95,
		FuzzyConfidence:       0.80,
	}
}

// Validate checks if the dedup configuration is valid
func (c *Config) Validate() error {
	if c.FuzzyWindow <= 0 {
		return fmt.Errorf("fuzzy window must be positive: %s", c.FuzzyWindow)
	}
	if c.NameVetoThreshold < 0.0 || c.NameVetoThreshold > 1.0 {
		return fmt.Errorf("name veto threshold must be between 0.0 and 1.0: %f", c.NameVetoThreshold)
	}
	for name, v := range map[string]float64{
		"reference":   c.ReferenceConfidence,
		"fingerprint": c.FingerprintConfidence,
		"fuzzy":       c.FuzzyConfidence,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s confidence must be between 0.0 and 1.0: %f", name, v)
		}
	}
	return nil
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("DedupConfig{FuzzyWindow: %s, NameVeto: %.2f}", c.FuzzyWindow, c.NameVetoThreshold)
}
