package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/database"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
	"gitlab.com/dirk.krummacker/contact-book/internal/store"
	"gitlab.com/dirk.krummacker/contact-book/internal/validation"
)

// Lister returns the contacts of a user in a stable order.
// contacts.Service implements it.
type Lister interface {
	List(ctx context.Context, userID int64, page model.Page) ([]model.Contact, error)
}

// Bridge moves contacts between spreadsheet files and the contact store.
type Bridge struct {
	db      *sqlx.DB
	timeout time.Duration
	lister  Lister
	writer  Writer
}

// NewBridge returns a Bridge importing into db and exporting what lister
// returns with writer. A nil writer makes every export fail with
// common.ErrExportUnavailable.
func NewBridge(db *sqlx.DB, timeout time.Duration, lister Lister, writer Writer) *Bridge {
	return &Bridge{db: db, timeout: timeout, lister: lister, writer: writer}
}

// Import adds the rows of a CSV, XLS or XLSX file to the contacts of the
// user. Rows without name or phone are skipped as invalid, rows with a phone
// the user already has are skipped as duplicates. The rows are inserted in
// one transaction.
func (b *Bridge) Import(ctx context.Context, userID int64, filename string, data []byte) (model.ImportReport, error) {
	kind, err := KindOf(filename)
	if err != nil {
		return model.ImportReport{}, err
	}
	inputs, err := parse(kind, data)
	if err != nil {
		return model.ImportReport{}, err
	}

	var report model.ImportReport
	err = database.WithTx(ctx, b.db, func(ctx context.Context, tx *sqlx.Tx) error {
		report = model.ImportReport{}
		contacts := store.NewContactStore(tx, b.timeout)
		for _, input := range inputs {
			if err := validation.Struct(input); err != nil {
				report.Invalid++
				continue
			}
			taken, err := contacts.PhoneTaken(ctx, userID, input.Phone, 0)
			if err != nil {
				return err
			}
			if taken {
				report.Duplicates++
				continue
			}
			contact := model.Contact{
				Name:    input.Name,
				Phone:   input.Phone,
				Email:   input.Email,
				Address: input.Address,
				UserId:  userID,
			}
			if err := contacts.Insert(ctx, &contact); err != nil {
				if errors.Is(err, common.ErrDuplicatePhone) {
					report.Duplicates++
					continue
				}
				return err
			}
			report.Added++
		}
		return nil
	})
	if err != nil {
		return model.ImportReport{}, fmt.Errorf("import %q: %w", filename, err)
	}
	return report, nil
}

// Export returns all contacts of the user as an xlsx workbook.
func (b *Bridge) Export(ctx context.Context, userID int64) ([]byte, error) {
	if b.writer == nil {
		return nil, fmt.Errorf("%w: no workbook writer", common.ErrExportUnavailable)
	}
	contacts, err := b.lister.List(ctx, userID, model.Page{})
	if err != nil {
		return nil, err
	}
	data, err := b.writer.Write(contacts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrExportUnavailable, err)
	}
	return data, nil
}
