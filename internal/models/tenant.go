package models

import (
	"time"
)

const (
	DefaultMinNumber = 0
	DefaultMaxNumber = 999
	// MaxAllowedNumber is the upper bound any guild may configure.
	MaxAllowedNumber = 9999
)

// Tenant is the per-guild configuration. A nil LeagueID means the guild
// has not been linked to an external league and is skipped by sync.
type Tenant struct {
	ID                    int64     `json:"guild_id" db:"guild_id"`
	LeagueID              *int64    `json:"league_id,omitempty" db:"league_id"`
	MinNumber             int       `json:"min_number" db:"min_number"`
	MaxNumber             int       `json:"max_number" db:"max_number"`
	AdminRoleID           *int64    `json:"admin_role_id,omitempty" db:"admin_role_id"`
	AnnouncementChannelID *int64    `json:"announcement_channel_id,omitempty" db:"announcement_channel_id"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultTenant returns the configuration used for guilds that never ran setup.
func DefaultTenant(id int64) *Tenant {
	return &Tenant{ID: id, MinNumber: DefaultMinNumber, MaxNumber: DefaultMaxNumber}
}

func (t *Tenant) SyncEnabled() bool {
	return t != nil && t.LeagueID != nil
}

func (t *Tenant) InRange(number int) bool {
	return number >= t.MinNumber && number <= t.MaxNumber
}
