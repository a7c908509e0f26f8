package bulk

import (
	"fmt"

	"golang-ledger-ingestion/internal/models"
)

// DuplicateReason says why two rows of one batch were grouped
type DuplicateReason string

const (
	ReasonSameReference   DuplicateReason = "same_reference"
	ReasonSameAmountDate  DuplicateReason = "same_amount_date_type"
	ReasonLedgerReference DuplicateReason = "ledger_reference"
	ReasonLedgerAmount    DuplicateReason = "ledger_amount_date_type"
)

// DuplicateGroup is a set of rows within one batch describing the same
// transaction. Rows holds indexes into the batch; the first one is kept.
type DuplicateGroup struct {
	GroupID string          `json:"group_id"`
	Rows    []int           `json:"rows"`
	Reason  DuplicateReason `json:"reason"`
}

// DetectDuplicates groups rows of a batch that repeat an earlier row, either
// by reference id or by amount, date and direction
func DetectDuplicates(rows []models.Candidate) []DuplicateGroup {
	var groups []DuplicateGroup
	processed := make(map[int]bool)

	for i := range rows {
		if processed[i] {
			continue
		}

		members := []int{i}
		var reason DuplicateReason
		for j := i + 1; j < len(rows); j++ {
			if processed[j] {
				continue
			}
			if r, ok := isPotentialDuplicate(rows[i], rows[j]); ok {
				members = append(members, j)
				processed[j] = true
				if reason == "" {
					reason = r
				}
			}
		}

		if len(members) > 1 {
			groups = append(groups, DuplicateGroup{
				GroupID: fmt.Sprintf("DUP_%d", i+1),
				Rows:    members,
				Reason:  reason,
			})
		}
		processed[i] = true
	}

	return groups
}

func isPotentialDuplicate(a, b models.Candidate) (DuplicateReason, bool) {
	if a.ReferenceID != "" && a.ReferenceID == b.ReferenceID {
		return ReasonSameReference, true
	}
	// two rows with different references are distinct payments
	if a.ReferenceID != "" && b.ReferenceID != "" {
		return "", false
	}
	if a.Type == b.Type && a.Amount.Equal(b.Amount) && a.DateKey() == b.DateKey() {
		return ReasonSameAmountDate, true
	}
	return "", false
}

// repeats maps each repeated row to the row it repeats
func repeats(groups []DuplicateGroup) map[int]DuplicateGroup {
	out := make(map[int]DuplicateGroup)
	for _, g := range groups {
		for _, row := range g.Rows[1:] {
			out[row] = g
		}
	}
	return out
}
