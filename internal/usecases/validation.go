package usecases

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	domainerrors "hostel-hub.backend/internal/domain/errors"
)

// Limits match the users table columns.
const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	maxPhoneLength = 32
	maxNameLength  = 100
	maxEmailLength = 255
)

var telegramPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{4,31}$`)

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// ValidPhone reports whether s holds between 7 and 15 digits once every
// non-digit character is ignored, and fits the 32 character column.
func ValidPhone(s string) bool {
	if utf8.RuneCountInString(s) > maxPhoneLength {
		return false
	}
	n := countDigits(s)
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// NormalizeTelegram strips surrounding space and a single leading '@'.
func NormalizeTelegram(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// ValidTelegram reports whether s is a Telegram username, with or without '@'.
func ValidTelegram(s string) bool {
	return telegramPattern.MatchString(NormalizeTelegram(s))
}

// agentContacts is the validated contact block of an agent.
type agentContacts struct {
	phone    string
	whatsapp string
	telegram string
}

// validateAgentContacts checks the contact fields an agent registers with.
// Phone is mandatory; whatsapp and telegram may be empty.
func validateAgentContacts(phone, whatsapp, telegram string) (agentContacts, error) {
	c := agentContacts{
		phone:    strings.TrimSpace(phone),
		whatsapp: strings.TrimSpace(whatsapp),
		telegram: NormalizeTelegram(telegram),
	}
	if c.phone == "" {
		return c, domainerrors.ErrPhoneRequired
	}
	if !ValidPhone(c.phone) {
		return c, domainerrors.ErrInvalidPhone
	}
	if c.whatsapp != "" && !ValidPhone(c.whatsapp) {
		return c, domainerrors.ErrInvalidWhatsApp
	}
	if c.telegram != "" && !ValidTelegram(c.telegram) {
		return c, domainerrors.ErrInvalidTelegram
	}
	return c, nil
}

// validateIdentity bounds name and email to what the users table stores.
func validateIdentity(name, email string) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return domainerrors.BadRequest(fmt.Sprintf("Name must be at most %d characters", maxNameLength))
	}
	if utf8.RuneCountInString(email) > maxEmailLength {
		return domainerrors.BadRequest(fmt.Sprintf("Email must be at most %d characters", maxEmailLength))
	}
	return nil
}

// validatePassword is the one password policy for registration and changes.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domainerrors.BadRequest(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordBytes {
		return domainerrors.BadRequest(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}
