package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID        uuid.UUID         `json:"id"`
	Email     string            `json:"email"`
	Nickname  string            `json:"nickname"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Profile   map[string]string `json:"profile,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Field resolves a logical profile field to its value.
func (m *Member) Field(key string) string {
	switch key {
	case FieldEmail:
		return m.Email
	case FieldNickname:
		return m.Nickname
	case FieldFirstName:
		return m.FirstName
	case FieldLastName:
		return m.LastName
	}
	return m.Profile[key]
}

func (m *Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Nickname
	}
	return name
}

const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldNickname  = "nickname"
)

type ProfileField struct {
	Key   string
	Label string
}

// ProfileRequirements lists the profile fields a member must fill in before
// voting, in the order they are checked.
type ProfileRequirements struct {
	fields []ProfileField
}

var identityFields = []ProfileField{
	{Key: FieldFirstName, Label: "First name"},
	{Key: FieldLastName, Label: "Last name"},
	{Key: FieldEmail, Label: "Email"},
}

// NewProfileRequirements always includes the identity fields; optional
// fields are appended after them and duplicates are ignored.
func NewProfileRequirements(optional ...ProfileField) ProfileRequirements {
	seen := make(map[string]bool)
	fields := make([]ProfileField, 0, len(identityFields)+len(optional))
	for _, f := range append(append([]ProfileField{}, identityFields...), optional...) {
		if f.Key == "" || seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		if f.Label == "" {
			f.Label = f.Key
		}
		fields = append(fields, f)
	}
	return ProfileRequirements{fields: fields}
}

func (r ProfileRequirements) Fields() []ProfileField {
	if r.fields == nil {
		return identityFields
	}
	return r.fields
}

// FirstMissing returns the first required field left empty on m.
func (r ProfileRequirements) FirstMissing(m *Member) (ProfileField, bool) {
	for _, f := range r.Fields() {
		if strings.TrimSpace(m.Field(f.Key)) == "" {
			return f, true
		}
	}
	return ProfileField{}, false
}

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Caller identifies who is making a request. The zero value is an
// unauthenticated caller.
type Caller struct {
	MemberID uuid.UUID
	Role     Role
}

func (c Caller) Authenticated() bool {
	return c.MemberID != uuid.Nil
}

func (c Caller) IsAdmin() bool {
	return c.Authenticated() && c.Role == RoleAdmin
}
