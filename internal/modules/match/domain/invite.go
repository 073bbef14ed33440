package domain

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
)

// Invite is a pending offer to add a non-participant to a match. At most one
// pending invite exists per (match, invitee) pair; an accepted or rejected
// invite is immutable.
type Invite struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	MatchID   uuid.UUID    `db:"match_id" json:"matchId"`
	InviterID uuid.UUID    `db:"inviter_id" json:"inviterId"`
	InviteeID uuid.UUID    `db:"invitee_id" json:"inviteeId"`
	Status    InviteStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}
