package storage

import (
	"context"
	"database/sql"
	"strings"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

// AddContact stores a contact and returns its id
func (s *SQLiteStore) AddContact(ctx context.Context, contact models.Contact) (int64, error) {
	name := strings.TrimSpace(contact.Name)
	if name == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "name", contact.Name, nil)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (name, name_normalized, phone, created_at)
		VALUES (?, ?, ?, ?)`,
		name, models.NormalizeName(name), nullString(phoneDigits(contact.Phone)), s.timestamp())
	if err != nil {
		return 0, errors.StorageError(errors.CodeWriteFailed, "add_contact", err)
	}
	return result.LastInsertId()
}

// FindContactsByPhoneSuffix returns active contacts whose phone ends in digits
func (s *SQLiteStore) FindContactsByPhoneSuffix(ctx context.Context, digits string) ([]models.Contact, error) {
	return s.findContacts(ctx, "find_contacts_by_phone", `
		SELECT id, name, phone FROM contacts
		WHERE phone LIKE ? ESCAPE '\' AND is_deleted = 0
		ORDER BY id`, "%"+likeEscape(digits))
}

// FindContactsByName returns active contacts whose normalized name contains
// fragment
func (s *SQLiteStore) FindContactsByName(ctx context.Context, fragment string) ([]models.Contact, error) {
	fragment = models.NormalizeName(fragment)
	if fragment == "" {
		return nil, nil
	}
	return s.findContacts(ctx, "find_contacts_by_name", `
		SELECT id, name, phone FROM contacts
		WHERE name_normalized LIKE ? ESCAPE '\' AND is_deleted = 0
		ORDER BY id`, "%"+likeEscape(fragment)+"%")
}

func (s *SQLiteStore) findContacts(ctx context.Context, op, query string, arg string) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var (
			c     models.Contact
			phone sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone); err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
		}
		c.Phone = phone.String
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
	}
	return contacts, nil
}

// GetVPAMapping returns the learned mapping for vpa, or nil
func (s *SQLiteStore) GetVPAMapping(ctx context.Context, vpa string) (*models.VPAMapping, error) {
	var m models.VPAMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT vpa, contact_id, contact_name FROM vpa_map WHERE vpa = ?`, vpa).
		Scan(&m.VPA, &m.ContactID, &m.ContactName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "get_vpa_mapping", err)
	}
	return &m, nil
}

// SaveVPAMapping stores or replaces the mapping for m.VPA
func (s *SQLiteStore) SaveVPAMapping(ctx context.Context, m models.VPAMapping) error {
	if strings.TrimSpace(m.VPA) == "" {
		return errors.ValidationError(errors.CodeMissingField, "vpa", m.VPA, nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO vpa_map (vpa, contact_id, contact_name, created_at)
		VALUES (?, ?, ?, ?)`,
		m.VPA, m.ContactID, m.ContactName, s.timestamp())
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "save_vpa_mapping", err)
	}
	return nil
}

// phoneDigits keeps only the digits of a phone number so suffix lookups
// ignore spacing and the country code prefix
func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
