package flow

import (
	"errors"
	"strings"
)

// validation errors of contact info
var (
	ErrTooFewFields = errors.New("expected name, email and phone separated by commas")
	ErrInvalidEmail = errors.New("invalid email")
)

// ContactInfo is a parsed "Full Name, Email, Phone" answer
type ContactInfo struct {
	Name  string
	Email string
	Phone string
}

// ParseContactInfo splits text by the first two commas into name, email and phone.
// Anything after the second comma belongs to the phone.
func ParseContactInfo(text string) (ContactInfo, error) {
	parts := strings.SplitN(text, ",", 3)
	if len(parts) < 3 {
		return ContactInfo{}, ErrTooFewFields
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	email := parts[1]
	at := strings.LastIndex(email, "@")
	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return ContactInfo{}, ErrInvalidEmail
	}
	return ContactInfo{Name: parts[0], Email: email, Phone: parts[2]}, nil
}
