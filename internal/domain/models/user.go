package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is the slice of the account record the translation core reads.
// Accounts are created and mutated by the REST collaborator; the core
// only resolves display names and language preferences.
type User struct {
	ID                   uuid.UUID `json:"id"`
	Username             string    `json:"username"`
	FullName             string    `json:"full_name"`
	SpeaksLanguages      []string  `json:"speaks_languages"`
	UnderstandsLanguages []string  `json:"understands_languages"`
	CreatedAt            time.Time `json:"created_at"`
}

// DisplayName prefers the full name, falling back to the username.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// InputLanguage returns the first spoken language, or "auto" when the
// user never configured one.
func (u *User) InputLanguage() string {
	if len(u.SpeaksLanguages) > 0 {
		return NormalizeLanguage(u.SpeaksLanguages[0])
	}
	return "auto"
}

// OutputLanguage returns the first understood language, defaulting to "en".
func (u *User) OutputLanguage() string {
	if len(u.UnderstandsLanguages) > 0 {
		return NormalizeLanguage(u.UnderstandsLanguages[0])
	}
	return "en"
}

// Participant is a roster snapshot entry included in join/leave broadcasts.
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Name     string `json:"name"`
}

// NormalizeLanguage strips region subtags and lowercases, so "pt-BR"
// and "PT" both become "pt". The empty string and "auto" pass through.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return code
	}
	if base, _, found := strings.Cut(code, "-"); found && base != "" {
		code = base
	}
	return strings.ToLower(code)
}

// NormalizeLanguages applies NormalizeLanguage to each entry, dropping blanks.
func NormalizeLanguages(codes []string) []string {
	if codes == nil {
		return nil
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := NormalizeLanguage(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}
