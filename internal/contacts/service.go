// Package contacts implements the owner-scoped operations on a user's
// contact list. Every operation takes the id of the acting user; a contact
// is only ever read or changed on behalf of its owner.
package contacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	"gitlab.com/dirk.krummacker/contact-book/internal/store"
	"gitlab.com/dirk.krummacker/contact-book/internal/validation"
)

// Service is the contact service.
type Service struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewService returns a Service on db running each query with timeout.
func NewService(db *sqlx.DB, timeout time.Duration) *Service {
	return &Service{db: db, timeout: timeout}
}

// List returns the contacts of the user ordered by id.
func (s *Service) List(ctx context.Context, userID int64, page model.Page) ([]model.Contact, error) {
	return store.NewContactStore(s.db, s.timeout).List(ctx, userID, page)
}

// Search returns the contacts of the user whose name, phone or email contains
// text, ignoring case. Blank text lists all contacts.
func (s *Service) Search(ctx context.Context, userID int64, text string, page model.Page) ([]model.Contact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.List(ctx, userID, page)
	}
	return store.NewContactStore(s.db, s.timeout).Search(ctx, userID, text, page)
}

// Get returns a single contact of the user.
func (s *Service) Get(ctx context.Context, contactID int64, userID int64) (model.Contact, error) {
	return owned(ctx, store.NewContactStore(s.db, s.timeout), contactID, userID)
}

// Add creates a contact for the user. Name and phone are required; the phone
// must not be in use by another contact of the user.
func (s *Service) Add(ctx context.Context, userID int64, input model.ContactInput) (model.Contact, error) {
	input = input.Trimmed()
	if err := validation.Struct(input); err != nil {
		return model.Contact{}, err
	}
	contact := model.Contact{
		Name:    input.Name,
		Phone:   input.Phone,
		Email:   input.Email,
		Address: input.Address,
		UserId:  userID,
	}
	contacts := store.NewContactStore(s.db, s.timeout)
	taken, err := contacts.PhoneTaken(ctx, userID, input.Phone, 0)
	if err != nil {
		return model.Contact{}, err
	}
	if taken {
		return model.Contact{}, fmt.Errorf("add %q: %w", input.Phone, common.ErrDuplicatePhone)
	}
	// The check above is a fast path. The unique index on (user_id, phone)
	// rejects a concurrent insert of the same phone.
	if err := contacts.Insert(ctx, &contact); err != nil {
		return model.Contact{}, err
	}
	return contact, nil
}

// Update replaces all fields of a contact of the user.
func (s *Service) Update(ctx context.Context, contactID int64, userID int64, input model.ContactInput) (model.Contact, error) {
	var updated model.Contact
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		contacts := store.NewContactStore(tx, s.timeout)
		contact, err := owned(ctx, contacts, contactID, userID)
		if err != nil {
			return err
		}
		input = input.Trimmed()
		if err := validation.Struct(input); err != nil {
			return err
		}
		taken, err := contacts.PhoneTaken(ctx, userID, input.Phone, contactID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("update %d to %q: %w", contactID, input.Phone, common.ErrDuplicatePhone)
		}
		contact.Name = input.Name
		contact.Phone = input.Phone
		contact.Email = input.Email
		contact.Address = input.Address
		if err := contacts.Update(ctx, contact); err != nil {
			return err
		}
		updated = contact
		return nil
	})
	if err != nil {
		return model.Contact{}, err
	}
	return updated, nil
}

// Delete removes a contact of the user permanently.
func (s *Service) Delete(ctx context.Context, contactID int64, userID int64) error {
	return database.WithTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		contacts := store.NewContactStore(tx, s.timeout)
		if _, err := owned(ctx, contacts, contactID, userID); err != nil {
			return err
		}
		return contacts.Delete(ctx, contactID, userID)
	})
}

// owned loads a contact and checks that it belongs to the user.
func owned(ctx context.Context, contacts *store.ContactStore, contactID int64, userID int64) (model.Contact, error) {
	contact, err := contacts.FindByID(ctx, contactID)
	if err != nil {
		return model.Contact{}, err
	}
	if contact.UserId != userID {
		return model.Contact{}, fmt.Errorf("contact %d: %w", contactID, common.ErrUnauthorized)
	}
	return contact, nil
}
