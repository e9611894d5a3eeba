package service

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

var (
	emailPattern   = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)
	idnaProfile    = idna.Lookup
)

const minPasswordLength = 8

// ValidationError indicates that caller supplied input was rejected.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return ValidationError{Message: message}
}

// normalizeEmail lowercases the address and converts an internationalised domain to its
// ASCII form so that lookups are stable.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", invalid("invalid email address")
	}
	local, domain := email[:at], email[at+1:]
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || !isDomainValid(asciiDomain) {
		return "", invalid("invalid email address")
	}
	email = local + "@" + asciiDomain
	if !emailPattern.MatchString(email) {
		return "", invalid("invalid email address")
	}
	return email, nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < minPasswordLength {
		return invalid("password must be at least 8 characters")
	}
	return nil
}

func normalizeCountry(raw string) (string, error) {
	country := strings.ToUpper(strings.TrimSpace(raw))
	if !countryPattern.MatchString(country) {
		return "", invalid("country must be an ISO 3166 alpha-2 code")
	}
	return country, nil
}

// normalizePhone returns the E.164 form of raw, or an empty string when it is not a valid number
// for region.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
