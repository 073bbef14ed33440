package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchStatusOpen    MatchStatus = "open"
	MatchStatusExpired MatchStatus = "expired"
	MatchStatusClosed  MatchStatus = "closed"
)

const ParticipantCap = 10

const OriginKindPost = "post"

// AlertThresholds are the hours-before-expiry marks at which a one-time
// notice is posted into the room, in delivery order.
var AlertThresholds = []int{4, 3, 2, 1}

type Origin struct {
	Kind  string `json:"kind"`
	RefID string `json:"refId"`
}

// Match binds a set of participants to an anonymous chat room with a
// bounded lifetime. The record is never deleted - closed and expired
// matches are retained for audit.
type Match struct {
	ID         uuid.UUID   `json:"id"`
	Origin     Origin      `json:"origin"`
	CreatorID  uuid.UUID   `json:"creatorId"`
	Status     MatchStatus `json:"status"`
	ExpiresAt  time.Time   `json:"expiresAt"`
	RoomID     string      `json:"roomId"`
	AlertsSent []int       `json:"alertsSent"`
	PairKey    string      `json:"-"`
	CreatedAt  time.Time   `json:"createdAt"`

	// Participants is populated by store reads that load membership.
	// Scan-style reads (the scheduler's near-expiry query) leave it nil.
	Participants []Participant `json:"participants,omitempty"`
}

type Participant struct {
	UserID   uuid.UUID `db:"user_id" json:"userId"`
	Position int       `db:"position" json:"position"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
}

func (m Match) HasParticipant(userID uuid.UUID) bool {
	for _, p := range m.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (m Match) AlertSent(threshold int) bool {
	for _, sent := range m.AlertsSent {
		if sent == threshold {
			return true
		}
	}
	return false
}

// HoursRemaining reports the whole hours left until expiry, rounded down.
// A match past its expiry reports -1.
func (m Match) HoursRemaining(now time.Time) int {
	remaining := m.ExpiresAt.Sub(now)
	if remaining < 0 {
		return -1
	}
	return int(remaining / time.Hour)
}

// CanTransition reports whether a status change is part of the lifecycle:
// open->expired, open->closed, expired->closed, expired->open (restore).
// closed is terminal.
func CanTransition(from, to MatchStatus) bool {
	switch from {
	case MatchStatusOpen:
		return to == MatchStatusExpired || to == MatchStatusClosed
	case MatchStatusExpired:
		return to == MatchStatusOpen || to == MatchStatusClosed
	default:
		return false
	}
}

// PairKey is the create-dedup key for a founding participant pair. It is
// insensitive to argument order so that both users racing to match on the
// same post land on the same key.
func PairKey(a, b uuid.UUID) string {
	first, second := a.String(), b.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}
	return first + ":" + second
}
