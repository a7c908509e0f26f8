package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang-ledger-ingestion/internal/confidence"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/internal/resolver"
	"golang-ledger-ingestion/pkg/logger"
)

// event is a raw item on its way through the pipeline
type event struct {
	hash     string
	channel  string
	source   models.Source
	app      string
	category string
	alert    parsers.AlertLevel
	original string
	// scoring channel and subtype used when the parser set no confidence
	scoreChannel string
	scoreSubtype string
	// text searched for a VPA to remember once the payer is known
	vpaText string
}

func hashParts(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func hashNotification(n models.Notification) string {
	return hashParts(n.Package, n.ID, n.When, n.Content)
}

func hashSMS(s models.SMS) string {
	return hashParts(string(models.SourceSMS), s.Sender, s.Date, s.Body)
}

func hashForwarded(text string) string {
	return hashParts(string(models.SourceForwarded), strings.TrimSpace(text))
}

// ProcessNotification runs one app notification through the pipeline.
// Notifications from unregistered apps are skipped.
func (p *Poller) ProcessNotification(ctx context.Context, n models.Notification) (Result, error) {
	entry, ok := p.deps.Registry.Lookup(n.Package)
	if !ok {
		return Result{Status: models.StatusSkipped}, nil
	}

	ev := event{
		hash:     hashNotification(n),
		channel:  n.Package,
		source:   models.SourceNotification,
		app:      entry.Name,
		category: entry.Category,
		alert:    entry.AlertLevel,
		original: fmt.Sprintf("[%s] %s: %s", entry.Name, n.Title, n.Content),
		vpaText:  n.Content,
	}
	if seen, err := p.seen(ctx, ev); err != nil || seen {
		return Result{Status: StatusAlreadySeen, App: ev.app}, err
	}

	c, ok := entry.Parse(n.Title, n.Content)
	if !ok {
		return p.skip(ctx, ev)
	}
	if c.TransactionDate.IsZero() {
		c.TransactionDate = n.Time(p.now().In(p.config.Location))
	}
	p.enrich(ctx, &c)

	if entry.Category == parsers.AppPlatform {
		switch {
		case c.Category == parsers.CategoryPlatformPending:
			return p.platformOrder(ctx, ev, entry, c)
		case c.IsSettlement:
			return p.platformSettlement(ctx, ev, entry, c)
		case c.Category == parsers.CategoryReturn:
			return p.platformReturn(ctx, ev, entry, c)
		case c.Category == parsers.CategoryDailySummary:
			// restates orders already booked as pending
			return p.skip(ctx, ev)
		}
	}

	ev.scoreChannel = string(models.SourceNotification)
	ev.scoreSubtype = notificationSubtype(entry.Category, c)
	if c.Method == "" {
		c.Method = models.MethodUPI
	}
	return p.capture(ctx, ev, c)
}

// ProcessSMS runs one bank SMS through the pipeline
func (p *Poller) ProcessSMS(ctx context.Context, sms models.SMS) (Result, error) {
	ev := event{
		hash:         hashSMS(sms),
		channel:      sms.Sender,
		source:       models.SourceSMS,
		app:          sms.Sender,
		category:     parsers.AppBank,
		alert:        parsers.AlertNormal,
		original:     fmt.Sprintf("[%s] %s", sms.Sender, sms.Body),
		scoreChannel: string(models.SourceSMS),
		vpaText:      sms.Body,
	}
	if seen, err := p.seen(ctx, ev); err != nil || seen {
		return Result{Status: StatusAlreadySeen, App: ev.app}, err
	}

	c, ok := parsers.ParseBankSMS(sms, p.now().In(p.config.Location))
	if !ok {
		return p.skip(ctx, ev)
	}
	if bank := c.Bank; bank != "" {
		ev.app = bank
	}
	ev.scoreSubtype = "without_ref"
	if c.ReferenceID != "" {
		ev.scoreSubtype = "with_ref"
	}
	p.enrich(ctx, &c)
	return p.capture(ctx, ev, c)
}

// ProcessForwarded runs a message the owner forwarded into the chat
func (p *Poller) ProcessForwarded(ctx context.Context, text string) (Result, error) {
	ev := event{
		hash:         hashForwarded(text),
		channel:      string(models.SourceForwarded),
		source:       models.SourceForwarded,
		app:          "Forwarded",
		category:     string(models.SourceForwarded),
		alert:        parsers.AlertNormal,
		original:     strings.TrimSpace(text),
		scoreChannel: string(models.SourceForwarded),
		scoreSubtype: "parsed",
		vpaText:      text,
	}
	if seen, err := p.seen(ctx, ev); err != nil || seen {
		return Result{Status: StatusAlreadySeen, App: ev.app}, err
	}

	c, ok := parsers.ParseForwarded(text, p.now().In(p.config.Location))
	if !ok {
		return p.skip(ctx, ev)
	}
	if c.Confidence < parsers.ForwardedBankSMSConfidence {
		ev.scoreSubtype = "partial"
	}
	p.enrich(ctx, &c)
	return p.capture(ctx, ev, c)
}

func notificationSubtype(category string, c models.Candidate) string {
	switch category {
	case parsers.AppPOS:
		return "pos"
	case parsers.AppBank:
		return "bank"
	case parsers.AppPlatform:
		return "platform_order"
	}
	if c.ReferenceID != "" {
		return "upi_with_ref"
	}
	return "upi_without_ref"
}

func (p *Poller) seen(ctx context.Context, ev event) (bool, error) {
	entry, err := p.deps.Store.FindNotification(ctx, ev.hash)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// enrich swaps a VPA counterparty for the contact it belongs to. Lookup
// failures leave the candidate as parsed.
func (p *Poller) enrich(ctx context.Context, c *models.Candidate) {
	if c.Counterparty == "" {
		return
	}
	vpa, ok := resolver.ExtractVPA(c.Counterparty)
	if !ok {
		return
	}
	res, found, err := p.deps.Resolver.Resolve(ctx, vpa)
	if err != nil {
		p.logger.WithError(err).WithField("vpa", vpa).Warn("VPA lookup failed")
		return
	}
	if found {
		c.Counterparty = res.ContactName
		c.CounterpartyID = res.ContactID
	}
}

func (p *Poller) skip(ctx context.Context, ev event) (Result, error) {
	if err := p.log(ctx, ev, models.StatusSkipped, 0); err != nil {
		return Result{}, err
	}
	return Result{Status: models.StatusSkipped, App: ev.app, Category: ev.category}, nil
}

func (p *Poller) log(ctx context.Context, ev event, status models.NotificationStatus, txnID int64) error {
	_, err := p.deps.Store.LogNotification(ctx, models.NotificationLogEntry{
		Hash:          ev.hash,
		Package:       ev.channel,
		Status:        status,
		TransactionID: txnID,
	})
	return err
}

// capture is the common tail: dedup, score, store, fingerprint, log, learn
func (p *Poller) capture(ctx context.Context, ev event, c models.Candidate) (Result, error) {
	res := Result{
		App:          ev.app,
		Category:     ev.category,
		Amount:       c.Amount,
		Type:         string(c.Type),
		Counterparty: c.Counterparty,
		AlertLevel:   ev.alert,
	}
	log := p.logger.WithFields(logger.Fields{
		"channel": ev.channel,
		"amount":  c.Amount.StringFixed(2),
		"type":    c.Type,
	})

	dup, err := p.deps.Dedup.IsDuplicate(ctx, c, ev.source)
	if err != nil {
		return Result{}, err
	}
	if dup.IsDupe {
		if err := p.log(ctx, ev, models.StatusDuplicate, dup.MatchedID); err != nil {
			return Result{}, err
		}
		log.WithFields(logger.Fields{
			"matched_id": dup.MatchedID,
			"tier":       dup.Tier.String(),
		}).Debug("Event already in ledger")
		res.Status = models.StatusDuplicate
		res.DuplicateOf = dup.MatchedID
		res.DuplicateTier = dup.Tier.String()
		return res, nil
	}

	score := c.Confidence
	if score <= 0 {
		score = confidence.Score(ev.scoreChannel, ev.scoreSubtype)
	}
	decision := confidence.Decide(score)
	res.Confidence = score
	res.Decision = string(decision)
	if decision == confidence.Skip {
		log.WithField("confidence", score).Info("Confidence too low to record")
		if err := p.log(ctx, ev, models.StatusSkipped, 0); err != nil {
			return Result{}, err
		}
		res.Status = models.StatusSkipped
		return res, nil
	}

	c.Confidence = score
	id, err := p.deps.Store.InsertTransaction(ctx, models.StoredTransaction{
		Candidate:       c,
		Source:          ev.source,
		IsConfirmed:     decision == confidence.AutoConfirm,
		OriginalMessage: ev.original,
	})
	if err != nil {
		return Result{}, err
	}
	if err := p.log(ctx, ev, models.StatusCaptured, id); err != nil {
		return Result{}, err
	}
	// the row is stored; without a fingerprint later sightings still match
	// by reference or by the fuzzy window
	if err := p.deps.Dedup.RecordTransaction(ctx, c, ev.source, id); err != nil {
		log.WithError(err).WithField("transaction_id", id).Warn("Failed to record fingerprint")
	}

	if c.CounterpartyID != 0 && c.ReferenceID != "" {
		if vpa, ok := resolver.ExtractVPA(ev.vpaText); ok {
			if err := p.deps.Resolver.Remember(ctx, vpa, c.CounterpartyID, c.Counterparty); err != nil {
				log.WithError(err).Warn("Failed to remember VPA")
			}
		}
	}

	log.WithFields(logger.Fields{
		"transaction_id": id,
		"decision":       decision,
	}).Info("Captured transaction")

	res.Status = models.StatusCaptured
	res.TransactionID = id
	return res, nil
}

func (p *Poller) platformOrder(ctx context.Context, ev event, entry parsers.Entry, c models.Candidate) (Result, error) {
	id, err := p.deps.Accountant.LogPlatformOrder(ctx, c, entry.Platform, ev.original)
	if err != nil {
		return Result{}, err
	}
	if err := p.log(ctx, ev, models.StatusCaptured, id); err != nil {
		return Result{}, err
	}
	return Result{
		TransactionID: id,
		Status:        models.StatusCaptured,
		App:           entry.Name,
		Category:      "platform_order",
		Amount:        c.Amount,
		Type:          "pending_credit",
		Counterparty:  entry.Platform,
		OrderID:       c.OrderID,
		Confidence:    c.Confidence,
		Decision:      models.CategoryPlatformPending,
		AlertLevel:    entry.AlertLevel,
	}, nil
}

// platformSettlement books a payout against pending orders. The payout also
// reaches the bank account, so its fingerprint is recorded for the SMS.
func (p *Poller) platformSettlement(ctx context.Context, ev event, entry parsers.Entry, c models.Candidate) (Result, error) {
	settled, err := p.deps.Accountant.LogPlatformSettlement(ctx, c, entry.Platform, ev.original)
	if err != nil {
		return Result{}, err
	}
	if err := p.log(ctx, ev, models.StatusCaptured, settled.SettlementID); err != nil {
		return Result{}, err
	}

	credit := c
	credit.Type = models.TypeCredit
	if err := p.deps.Dedup.RecordTransaction(ctx, credit, ev.source, settled.SettlementID); err != nil {
		return Result{}, err
	}

	rec := &Reconciliation{OrdersReconciled: settled.OrdersSettled}
	if settled.CommissionID != 0 {
		rec.Commission = settled.Commission
		rec.CommissionID = settled.CommissionID
	}
	return Result{
		TransactionID:  settled.SettlementID,
		Status:         models.StatusCaptured,
		App:            entry.Name,
		Category:       models.CategoryPlatformSettlement,
		Amount:         c.Amount,
		Type:           string(models.TypeCredit),
		Counterparty:   entry.Platform + " Settlement",
		Confidence:     confidence.Score(string(models.SourceNotification), "platform_settlement"),
		Decision:       string(confidence.AutoConfirm),
		AlertLevel:     parsers.AlertNormal,
		Reconciliation: rec,
	}, nil
}

func (p *Poller) platformReturn(ctx context.Context, ev event, entry parsers.Entry, c models.Candidate) (Result, error) {
	id, err := p.deps.Accountant.LogReturn(ctx, c, entry.Platform, ev.original)
	if err != nil {
		return Result{}, err
	}
	if err := p.log(ctx, ev, models.StatusCaptured, id); err != nil {
		return Result{}, err
	}
	return Result{
		TransactionID: id,
		Status:        models.StatusCaptured,
		App:           entry.Name,
		Category:      models.CategoryPlatformReturn,
		Amount:        c.Amount,
		Type:          string(models.TypeDebit),
		Counterparty:  entry.Platform,
		OrderID:       c.OrderID,
		Confidence:    c.Confidence,
		Decision:      string(confidence.AskOwner),
		AlertLevel:    entry.AlertLevel,
	}, nil
}
