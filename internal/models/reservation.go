package models

import (
	"time"
)

type Origin string

const (
	OriginClaimed Origin = "claimed"
	OriginSynced  Origin = "synced"
)

// Reservation binds a car number to a member within one guild.
type Reservation struct {
	ID               int64      `json:"id" db:"id"`
	TenantID         int64      `json:"guild_id" db:"guild_id"`
	Number           int        `json:"car_number" db:"car_number"`
	ClaimantID       *int64     `json:"claimant_id,omitempty" db:"claimant_id"`
	ClaimantName     *string    `json:"claimant_name,omitempty" db:"claimant_name"`
	ExternalMemberID *int64     `json:"external_member_id,omitempty" db:"external_member_id"`
	ExternalName     *string    `json:"external_name,omitempty" db:"external_name"`
	Origin           Origin     `json:"origin" db:"origin"`
	Verified         bool       `json:"verified" db:"verified"`
	SyncedAt         *time.Time `json:"synced_at,omitempty" db:"synced_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

func (r *Reservation) IsClaimedBy(userID int64) bool {
	return r.ClaimantID != nil && *r.ClaimantID == userID
}

// SyncResult reports what an upsert from the external roster did to the row.
type SyncResult string

const (
	SyncCreated   SyncResult = "created"
	SyncUpdated   SyncResult = "updated"
	SyncUnchanged SyncResult = "unchanged"
)

type SyncOutcome struct {
	Reservation *Reservation `json:"reservation"`
	Result      SyncResult   `json:"result"`
}

// ReservationStats summarises a guild's reservations.
type ReservationStats struct {
	Total    int `json:"total"`
	Synced   int `json:"synced"`
	Verified int `json:"verified"`
}
