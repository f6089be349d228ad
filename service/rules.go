package service

import (
	"fmt"
	"regexp"
	"time"
)

// phonePattern accepts Kenyan phone numbers: a +254, 254 or 0 prefix
// followed by exactly nine digits.
var phonePattern = regexp.MustCompile(`^(\+254|254|0)\d{9}$`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// dateLayouts are the accepted date formats, tried in order. ISO
// first, then the day-first forms common in exported spreadsheets.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"02-01-2006",
}

// FieldRule is one declarative format rule. It applies to every
// non-empty value in the column mapped to Field; unmapped fields are
// skipped. Message renders the operator-facing error for a failing
// value.
type FieldRule struct {
	Field   string
	Valid   func(value string) bool
	Message func(value string) string
}

// formatRules is the rule table evaluated by ValidateRows after the
// required-field checks, in this order.
var formatRules = []FieldRule{
	{
		Field:   "phone_number",
		Valid:   validPhone,
		Message: phoneMessage,
	},
	{
		Field:   "date_of_birth",
		Valid:   validDate,
		Message: dateMessage,
	},
	{
		Field:   "next_of_kin_phone",
		Valid:   validPhone,
		Message: phoneMessage,
	},
	{
		Field:   "email",
		Valid:   validEmail,
		Message: emailMessage,
	},
}

func validPhone(v string) bool {
	return phonePattern.MatchString(v)
}

func validDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func validEmail(v string) bool {
	return emailPattern.MatchString(v)
}

func phoneMessage(v string) string {
	return fmt.Sprintf("Invalid phone number format: %s", v)
}

func dateMessage(v string) string {
	return fmt.Sprintf("Invalid date format: %s", v)
}

func emailMessage(v string) string {
	return fmt.Sprintf("Invalid email format: %s", v)
}
