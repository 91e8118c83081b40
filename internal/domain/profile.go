package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Role is the account type chosen during profile completion.
type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
)

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleAttendee, RoleOrganizer:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// AllInterests is the fixed catalogue offered during profile completion.
var AllInterests = []string{"Music", "Sports", "Tech", "Art", "Travel", "Food", "Gaming", "Fitness"}

// Profile is one row per authenticated identity, keyed by the user id.
type Profile struct {
	ID          uuid.UUID                   `json:"id" gorm:"type:uuid;primary_key"`
	FullName    *string                     `json:"full_name"`
	Birthdate   *Date                       `json:"birthdate" gorm:"type:date"`
	Interests   datatypes.JSONSlice[string] `json:"interests"`
	Role        Role                        `json:"role" gorm:"type:varchar(16);not null"`
	IsCompleted *bool                       `json:"is_completed"`
	CreatedAt   *time.Time                  `json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Completed is true only when the server explicitly marked the profile complete.
func (p *Profile) Completed() bool {
	return p != nil && p.IsCompleted != nil && *p.IsCompleted
}

// ProfileUpsert is the payload written when a user completes their profile.
type ProfileUpsert struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"full_name"`
	Birthdate   Date      `json:"birthdate"`
	Interests   []string  `json:"interests"`
	Role        Role      `json:"role"`
	IsCompleted bool      `json:"is_completed"`
}

// Profile converts the payload into a storable row.
func (u ProfileUpsert) Profile() *Profile {
	name := u.FullName
	birthdate := u.Birthdate
	completed := u.IsCompleted
	return &Profile{
		ID:          u.ID,
		FullName:    &name,
		Birthdate:   &birthdate,
		Interests:   datatypes.JSONSlice[string](u.Interests),
		Role:        u.Role,
		IsCompleted: &completed,
	}
}

// ProfileSnippet is the name-only projection used to label buyers and ticket owners.
type ProfileSnippet struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	FullName *string   `json:"full_name"`
}

func (ProfileSnippet) TableName() string {
	return "profiles"
}

// Date is a calendar date rendered as YYYY-MM-DD on the wire and in storage.
type Date string

const dateLayout = "2006-01-02"

func NewDate(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", ErrInvalidBirthdate
	}
	return Date(s), nil
}

func (d Date) Time() (time.Time, error) {
	return time.Parse(dateLayout, string(d))
}

func (d Date) String() string {
	return string(d)
}

func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = NewDate(v)
	case string:
		*d = Date(truncateDate(v))
	case []byte:
		*d = Date(truncateDate(string(v)))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		*d = ""
		return nil
	}
	*d = Date(truncateDate(*s))
	return nil
}

func truncateDate(s string) string {
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}
