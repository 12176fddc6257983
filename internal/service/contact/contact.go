package contact

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/contacts/internal/apperrors"
	"github.com/nkiryanov/contacts/internal/models"
	"github.com/nkiryanov/contacts/internal/repository"
)

const (
	DefaultLimit = 10
	MinLimit     = 10
	MaxLimit     = 500

	// Birthday is upcoming when no more than this number of days is left
	UpcomingDays = 7
)

type ContactService struct {
	// Repository to access long term data
	contactRepo repository.ContactRepo

	now func() time.Time
}

func NewService(contactRepo repository.ContactRepo) *ContactService {
	return &ContactService{
		contactRepo: contactRepo,
		now:         time.Now,
	}
}

// Contact fields the owner may set
type Fields struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Birthday    time.Time
	ExtraData   *string
}

func (f Fields) apply(c *models.Contact) {
	c.FirstName = strings.TrimSpace(f.FirstName)
	c.LastName = strings.TrimSpace(f.LastName)
	c.Email = strings.TrimSpace(f.Email)
	c.PhoneNumber = normalizePhone(f.PhoneNumber)
	y, m, d := f.Birthday.Date()
	c.Birthday = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	c.ExtraData = f.ExtraData
}

// Keep '+' and digits only, so every spelling of a number is stored the same way
// "1-555-123-4567", "+1 (555) 123-4567" and "+15551234567" all become "+15551234567"
func normalizePhone(phone string) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, c := range phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (s *ContactService) Create(ctx context.Context, user *models.User, fields Fields) (models.Contact, error) {
	c := models.Contact{UserID: user.ID}
	fields.apply(&c)

	return s.contactRepo.CreateContact(ctx, c)
}

func (s *ContactService) Get(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error) {
	return s.contactRepo.GetContact(ctx, user.ID, contactID)
}

// List user contacts page by page. Limit must be in [MinLimit, MaxLimit], offset not negative
func (s *ContactService) List(ctx context.Context, user *models.User, limit int, offset int) ([]models.Contact, error) {
	if limit < MinLimit || limit > MaxLimit || offset < 0 {
		return nil, fmt.Errorf("%w: limit must be in [%d, %d] and offset not negative", apperrors.ErrInvalidPage, MinLimit, MaxLimit)
	}

	return s.contactRepo.ListContacts(ctx, user.ID, repository.ListContactsOpts{Limit: limit, Offset: offset})
}

func (s *ContactService) Update(ctx context.Context, user *models.User, contactID uuid.UUID, fields Fields) (models.Contact, error) {
	c := models.Contact{ID: contactID, UserID: user.ID}
	fields.apply(&c)

	return s.contactRepo.UpdateContact(ctx, c)
}

func (s *ContactService) Delete(ctx context.Context, user *models.User, contactID uuid.UUID) (models.Contact, error) {
	return s.contactRepo.DeleteContact(ctx, user.ID, contactID)
}

func (s *ContactService) Search(ctx context.Context, user *models.User, opts repository.SearchContactsOpts) ([]models.Contact, error) {
	opts.FirstName = strings.TrimSpace(opts.FirstName)
	opts.LastName = strings.TrimSpace(opts.LastName)
	opts.Email = strings.TrimSpace(opts.Email)

	return s.contactRepo.SearchContacts(ctx, user.ID, opts)
}

// Contacts whose birthday is today or within the next UpcomingDays days
// Sorted by the days left, nearest first
func (s *ContactService) UpcomingBirthdays(ctx context.Context, user *models.User) ([]models.Contact, error) {
	all, err := s.contactRepo.ListContacts(ctx, user.ID, repository.ListContactsOpts{})
	if err != nil {
		return nil, fmt.Errorf("can't list contacts. Err: %w", err)
	}

	today := s.now()
	upcoming := make([]models.Contact, 0)
	for _, c := range all {
		if c.DaysToBirthday(today) <= UpcomingDays {
			upcoming = append(upcoming, c)
		}
	}

	slices.SortStableFunc(upcoming, func(a, b models.Contact) int {
		return a.DaysToBirthday(today) - b.DaysToBirthday(today)
	})

	return upcoming, nil
}
