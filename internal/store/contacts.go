package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
)

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// contactColumns is the select list matching model.Contact.
const contactColumns = `id, name, phone, email, address, user_id`

// likeEscaper escapes the LIKE wildcards of a search text. '!' is used as the
// escape character because MySQL and SQLite disagree on backslashes in
// string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ContactStore persists contacts. All queries except FindByID are scoped by
// the owning user.
type ContactStore struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

// NewContactStore returns a store that runs each query with the given timeout.
func NewContactStore(db sqlx.ExtContext, timeout time.Duration) *ContactStore {
	return &ContactStore{db: db, timeout: timeout}
}

// Insert creates the contact and sets its id.
func (s *ContactStore) Insert(ctx context.Context, contact *model.Contact) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result, err := sqlx.NamedExecContext(ctx, s.db, `
		INSERT INTO contacts (name, phone, email, address, user_id)
		VALUES (:name, :phone, :email, :address, :user_id)
	`, contact)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert contact: %w", common.ErrDuplicatePhone)
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	contact.Id = id
	return nil
}

// FindByID returns the contact with the given id, whoever owns it.
func (s *ContactStore) FindByID(ctx context.Context, id int64) (model.Contact, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var contact model.Contact
	err := sqlx.GetContext(ctx, s.db, &contact,
		`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, common.ErrNotFound
		}
		return model.Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return contact, nil
}

// PhoneTaken reports whether the user has a contact other than exceptID with
// exactly this phone number. Pass 0 as exceptID to check all contacts.
func (s *ContactStore) PhoneTaken(ctx context.Context, userID int64, phone string, exceptID int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var count int
	err := sqlx.GetContext(ctx, s.db, &count,
		`SELECT COUNT(*) FROM contacts WHERE user_id = ? AND phone = ? AND id <> ?`,
		userID, phone, exceptID)
	if err != nil {
		return false, fmt.Errorf("check phone: %w", err)
	}
	return count > 0, nil
}

// List returns the contacts of the user ordered by id.
func (s *ContactStore) List(ctx context.Context, userID int64, page model.Page) ([]model.Contact, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	limit, offset := bounds(page)
	contacts := []model.Contact{}
	err := sqlx.SelectContext(ctx, s.db, &contacts, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = ?
		ORDER BY id
		LIMIT ?
		OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return contacts, nil
}

// Search returns the contacts of the user whose name, phone or email contains
// text, ignoring case, ordered by id.
func (s *ContactStore) Search(ctx context.Context, userID int64, text string, page model.Page) ([]model.Contact, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	limit, offset := bounds(page)
	pattern := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
	contacts := []model.Contact{}
	err := sqlx.SelectContext(ctx, s.db, &contacts, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE user_id = ?
			AND (LOWER(name) LIKE ? ESCAPE '!'
				OR LOWER(phone) LIKE ? ESCAPE '!'
				OR LOWER(email) LIKE ? ESCAPE '!')
		ORDER BY id
		LIMIT ?
		OFFSET ?`, userID, pattern, pattern, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// Update overwrites all user-editable fields of the contact. The owner is part
// of the WHERE clause, so a contact of another user is reported as not found.
func (s *ContactStore) Update(ctx context.Context, contact model.Contact) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result, err := sqlx.NamedExecContext(ctx, s.db, `
		UPDATE contacts
		SET name = :name, phone = :phone, email = :email, address = :address
		WHERE id = :id AND user_id = :user_id
	`, contact)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("update contact %d: %w", contact.Id, common.ErrDuplicatePhone)
		}
		return fmt.Errorf("update contact %d: %w", contact.Id, err)
	}
	return expectOneRow(result, contact.Id)
}

// Delete removes the contact of the user permanently.
func (s *ContactStore) Delete(ctx context.Context, id int64, userID int64) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact %d: %w", id, err)
	}
	return expectOneRow(result, id)
}

// expectOneRow turns an UPDATE or DELETE that touched no row into ErrNotFound.
func expectOneRow(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("contact %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("contact %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// bounds converts a page into LIMIT and OFFSET values.
func bounds(page model.Page) (limit int, offset int) {
	limit = page.Limit
	if limit <= 0 {
		limit = maxInt
	}
	offset = page.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
