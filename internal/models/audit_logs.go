package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of one mutating store call.
// A nil ActorID marks a system action such as a sync pass.
type AuditEntry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  int64     `json:"guild_id" db:"guild_id"`
	ActorID   *int64    `json:"actor_id,omitempty" db:"actor_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Action constants for audit entries
const (
	ActionClaim        = "claim"
	ActionRelease      = "release"
	ActionForceRelease = "force_release"
	ActionLink         = "link"
	ActionSyncInsert   = "sync_insert"
	ActionSyncUpdate   = "sync_update"
	ActionSetup        = "setup"
)

const (
	DefaultAuditLimit = 10
	MaxAuditLimit     = 50
)
