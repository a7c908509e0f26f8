// Package health watches the capture channels and tells the owner, in their
// language, when one of them has gone quiet or is missing transactions.
package health

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/eod"
	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/logger"
)

// Severity of a health issue
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Suggestions double as the localized alert keys under "health."
const (
	SuggestCheckDND         = "check_dnd_settings"
	SuggestCheckPermissions = "check_notification_permissions"
	SuggestVerifyChannels   = "verify_both_channels_active"
	SuggestManualLogging    = "increase_manual_logging"
)

// ReportObservationType marks persisted health reports
const ReportObservationType = "insight"

const reportTTL = 7 * 24 * time.Hour

// Store is the ledger access the checker needs
type Store interface {
	LatestCreatedAt(ctx context.Context, source models.Source) (time.Time, bool, error)
	NotificationStats(ctx context.Context, days int) (models.NotificationStats, error)
	LatestObservation(ctx context.Context, obsType string) (*models.Observation, error)
	AddObservation(ctx context.Context, obs models.Observation) (int64, error)
}

// Thresholds decide when a channel counts as unhealthy
type Thresholds struct {
	SMSSilence          time.Duration `json:"sms_silence"`
	NotificationSilence time.Duration `json:"notification_silence"`
	OverlapDays         int           `json:"overlap_days"`
	OverlapMinCaptured  int           `json:"overlap_min_captured"`
	GapPercentage       float64       `json:"gap_percentage"`
}

// DefaultThresholds returns the standard alerting thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SMSSilence:          24 * time.Hour,
		NotificationSilence: 48 * time.Hour,
		OverlapDays:         7,
		OverlapMinCaptured:  10,
		GapPercentage:       20,
	}
}

// Issue is one detected problem. SilentHours is set for silence checks and
// is negative when the channel has never produced a transaction. CapturePct
// is set for the capture-gap check.
type Issue struct {
	Channel     string   `json:"channel"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion"`
	SilentHours float64  `json:"silent_hours,omitempty"`
	Threshold   float64  `json:"threshold_hours,omitempty"`
	CapturePct  float64  `json:"capture_pct,omitempty"`
}

// NeverSeen reports whether the silent channel has no history at all
func (i Issue) NeverSeen() bool {
	return i.SilentHours < 0
}

// Checker runs the channel health checks
type Checker struct {
	store       Store
	catalog     *i18n.Catalog
	thresholds  Thresholds
	gapOverride *float64
	logger      logger.Logger
	now         func() time.Time
}

// NewChecker creates a checker with DefaultThresholds
func NewChecker(store Store, catalog *i18n.Catalog, log logger.Logger) *Checker {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Checker{
		store:      store,
		catalog:    catalog,
		thresholds: DefaultThresholds(),
		logger:     log.WithComponent("health"),
		now:        time.Now,
	}
}

// SetGapPercentage makes the capture-gap check use pct instead of the last
// recorded end-of-day gap
func (c *Checker) SetGapPercentage(pct float64) {
	c.gapOverride = &pct
}

// Check runs every check and returns the issues found, warnings and infos
// in check order
func (c *Checker) Check(ctx context.Context) ([]Issue, error) {
	var issues []Issue

	sms, err := c.silence(ctx, models.SourceSMS, c.thresholds.SMSSilence)
	if err != nil {
		return nil, err
	}
	if sms != nil {
		sms.Channel = string(models.SourceSMS)
		sms.Suggestion = SuggestCheckDND
		sms.Message = fmt.Sprintf("No SMS transactions in %s hours", hoursText(*sms))
		issues = append(issues, *sms)
	}

	notif, err := c.silence(ctx, models.SourceNotification, c.thresholds.NotificationSilence)
	if err != nil {
		return nil, err
	}
	if notif != nil {
		notif.Channel = string(models.SourceNotification)
		notif.Suggestion = SuggestCheckPermissions
		notif.Message = fmt.Sprintf("No notification transactions in %s hours", hoursText(*notif))
		issues = append(issues, *notif)
	}

	stats, err := c.store.NotificationStats(ctx, c.thresholds.OverlapDays)
	if err != nil {
		return nil, err
	}
	// two live channels see the same payments, so some must dedupe
	if stats.Captured > c.thresholds.OverlapMinCaptured && stats.Duplicates == 0 {
		issues = append(issues, Issue{
			Channel:    "cross_channel",
			Severity:   SeverityInfo,
			Message:    fmt.Sprintf("No SMS-notification overlap detected in %d days", c.thresholds.OverlapDays),
			Suggestion: SuggestVerifyChannels,
		})
	}

	gap, ok, err := c.gapPercentage(ctx)
	if err != nil {
		return nil, err
	}
	if ok && gap > c.thresholds.GapPercentage {
		capture := capturePct(gap)
		issues = append(issues, Issue{
			Channel:    "overall",
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Capturing only ~%s%% of daily transactions automatically", formatPct(capture)),
			Suggestion: SuggestManualLogging,
			CapturePct: capture,
		})
	}

	c.logger.WithFields(logger.Fields{
		"issues":   len(issues),
		"captured": stats.Captured,
		"dupes":    stats.Duplicates,
	}).Debug("Health check complete")

	return issues, nil
}

// GenerateReport runs Check and, when anything is wrong, stores a summary
// observation that expires after a week
func (c *Checker) GenerateReport(ctx context.Context) ([]Issue, error) {
	issues, err := c.Check(ctx)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return issues, nil
	}

	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.Channel + ": " + issue.Message
	}
	expires := c.now().Add(reportTTL)
	_, err = c.store.AddObservation(ctx, models.Observation{
		Type:       ReportObservationType,
		Content:    fmt.Sprintf("Data health: %d issue(s) detected. %s", len(issues), strings.Join(parts, "; ")),
		Properties: map[string]interface{}{"issues": issues},
		Confidence: 0.8,
		Source:     "analysis",
		ExpiresAt:  &expires,
	})
	if err != nil {
		return issues, err
	}

	c.logger.WithField("issues", len(issues)).Warn("Channel health issues recorded")
	return issues, nil
}

// Alert renders the owner-facing message for an issue
func (c *Checker) Alert(issue Issue, lang string) string {
	vars := i18n.Vars{}
	switch issue.Suggestion {
	case SuggestCheckDND, SuggestCheckPermissions:
		vars["hours"] = hoursText(issue)
	case SuggestManualLogging:
		vars["pct"] = formatPct(issue.CapturePct)
	}
	return c.catalog.Render(lang, "health."+issue.Suggestion, vars)
}

// silence returns an issue when source has been quiet for longer than limit
func (c *Checker) silence(ctx context.Context, source models.Source, limit time.Duration) (*Issue, error) {
	latest, ok, err := c.store.LatestCreatedAt(ctx, source)
	if err != nil {
		return nil, err
	}
	issue := &Issue{Severity: SeverityWarning, Threshold: limit.Hours()}
	if !ok {
		issue.SilentHours = -1
		return issue, nil
	}
	quiet := c.now().Sub(latest)
	if quiet <= limit {
		return nil, nil
	}
	issue.SilentHours = quiet.Hours()
	return issue, nil
}

func (c *Checker) gapPercentage(ctx context.Context) (float64, bool, error) {
	if c.gapOverride != nil {
		return *c.gapOverride, true, nil
	}
	obs, err := c.store.LatestObservation(ctx, eod.ObservationType)
	if err != nil || obs == nil {
		return 0, false, err
	}
	pct, ok := obs.Float(eod.GapPercentageKey)
	return pct, ok, nil
}

func hoursText(issue Issue) string {
	if issue.NeverSeen() {
		return strconv.Itoa(int(issue.Threshold)) + "+"
	}
	return strconv.Itoa(int(math.Round(issue.SilentHours)))
}

func capturePct(gap float64) float64 {
	pct, _ := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(gap)).Round(2).Float64()
	return pct
}

func formatPct(pct float64) string {
	return decimal.NewFromFloat(pct).Round(2).String()
}
