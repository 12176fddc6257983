package models

import (
	"time"

	"github.com/google/uuid"
)

type Contact struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Birthday    time.Time
	ExtraData   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Number of days left until the next birthday counting from 'today'
// Zero means the birthday is today. Feb 29 birthdays are celebrated on Mar 1 in non leap years
func (c Contact) DaysToBirthday(today time.Time) int {
	y, m, d := today.Date()
	today = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	next := birthdayIn(c.Birthday, y)
	if next.Before(today) {
		next = birthdayIn(c.Birthday, y+1)
	}

	return int(next.Sub(today).Hours() / 24)
}

func birthdayIn(birthday time.Time, year int) time.Time {
	_, m, d := birthday.Date()
	// time.Date normalizes Feb 29 to Mar 1 on non leap years
	return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
}
