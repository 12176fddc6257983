package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
)

type ContactRepo struct {
	DB DBTX
}

const contactColumns = `id, user_id, first_name, last_name, email, phone_number, birthday, extra_data, created_at, updated_at`

const createContact = `-- name: CreateContact
INSERT INTO contacts (id, user_id, first_name, last_name, email, phone_number, birthday, extra_data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + contactColumns

func (r *ContactRepo) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	rows, err := r.DB.Query(ctx, createContact,
		id, c.UserID, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Birthday, c.ExtraData,
	)
	return collectContact(rows, err)
}

const getContact = `-- name: GetContact
SELECT ` + contactColumns + ` FROM contacts
WHERE id = $1 AND user_id = $2
`

func (r *ContactRepo) GetContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID) (models.Contact, error) {
	rows, err := r.DB.Query(ctx, getContact, contactID, userID)
	return collectContact(rows, err)
}

const updateContact = `-- name: UpdateContact
UPDATE contacts SET
	first_name = $3,
	last_name = $4,
	email = $5,
	phone_number = $6,
	birthday = $7,
	extra_data = $8,
	updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + contactColumns

func (r *ContactRepo) UpdateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	rows, err := r.DB.Query(ctx, updateContact,
		c.ID, c.UserID, c.FirstName, c.LastName, c.Email, c.PhoneNumber, c.Birthday, c.ExtraData,
	)
	return collectContact(rows, err)
}

const deleteContact = `-- name: DeleteContact
DELETE FROM contacts
WHERE id = $1 AND user_id = $2
RETURNING ` + contactColumns

func (r *ContactRepo) DeleteContact(ctx context.Context, userID uuid.UUID, contactID uuid.UUID) (models.Contact, error) {
	rows, err := r.DB.Query(ctx, deleteContact, contactID, userID)
	return collectContact(rows, err)
}

const listContacts = `-- name: ListContacts
SELECT ` + contactColumns + ` FROM contacts
WHERE user_id = $1
ORDER BY last_name, first_name, id
LIMIT $2 OFFSET $3
`

func (r *ContactRepo) ListContacts(ctx context.Context, userID uuid.UUID, opts repository.ListContactsOpts) ([]models.Contact, error) {
	// NULL limit is no limit for postgres
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}

	rows, err := r.DB.Query(ctx, listContacts, userID, limit, max(opts.Offset, 0))
	return collectContacts(rows, err)
}

// Empty pattern is '%' and matches everything, so unused filters just drop out
const searchContacts = `-- name: SearchContacts
SELECT ` + contactColumns + ` FROM contacts
WHERE user_id = $1
	AND first_name ILIKE $2
	AND last_name ILIKE $3
	AND email ILIKE $4
ORDER BY last_name, first_name, id
`

func (r *ContactRepo) SearchContacts(ctx context.Context, userID uuid.UUID, opts repository.SearchContactsOpts) ([]models.Contact, error) {
	rows, err := r.DB.Query(ctx, searchContacts,
		userID, containsPattern(opts.FirstName), containsPattern(opts.LastName), containsPattern(opts.Email),
	)
	return collectContacts(rows, err)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ILIKE pattern matching s as a literal substring
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func collectContact(rows pgx.Rows, err error) (models.Contact, error) {
	if err == nil {
		var c models.Contact
		c, err = pgx.CollectOneRow(rows, rowToContact)
		if err == nil {
			return c, nil
		}
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return models.Contact{}, apperrors.ErrContactNotFound
	case isUniqueViolation(err):
		return models.Contact{}, apperrors.ErrContactExists
	default:
		return models.Contact{}, fmt.Errorf("db error: %w", err)
	}
}

func collectContacts(rows pgx.Rows, err error) ([]models.Contact, error) {
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	contacts, err := pgx.CollectRows(rows, rowToContact)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return contacts, nil
}

func rowToContact(row pgx.CollectableRow) (models.Contact, error) {
	var c models.Contact
	err := row.Scan(
		&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.Birthday, &c.ExtraData, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
