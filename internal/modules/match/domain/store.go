package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MatchStore is the sole source of truth for match and invite state. No
// caller caches records across operations - every operation re-reads and
// conditionally writes, so concurrent callers racing on the same match
// converge on a single winner and losers observe the post-state.
type MatchStore interface {
	// CreateMatch persists the match unless an open match with the same
	// (origin, pair key) already exists, in which case the existing match is
	// returned and created is false. createRoom runs inside the create
	// transaction; if it fails the record is discarded, so a match is never
	// persisted without a room and a failed room call never leaks a record.
	CreateMatch(
		ctx context.Context,
		match Match,
		createRoom func(context.Context) (string, error),
	) (m Match, created bool, err error)

	// GetMatch loads a match with its participants in insertion order.
	GetMatch(ctx context.Context, id uuid.UUID) (Match, error)

	// CloseMatch moves a match to closed from any state. Closing an already
	// closed match is a no-op.
	CloseMatch(ctx context.Context, id uuid.UUID) error

	// RemoveParticipant deletes the participant and reports how many remain.
	// Removing an absent participant reports removed=false with no error.
	RemoveParticipant(ctx context.Context, matchID, userID uuid.UUID) (removed bool, remaining int, err error)

	// RestoreMatch conditionally reopens an expired match, setting the new
	// expiry and clearing alert bookkeeping. Reports false when the match is
	// no longer expired (the condition lost a race or never held).
	RestoreMatch(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error)

	// ExpireMatch conditionally moves open->expired. Reports false when the
	// status already changed, which callers treat as losing a benign race.
	ExpireMatch(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkAlertSent appends the threshold to the match's delivered-alert set
	// iff the match is still open and the threshold is not yet recorded.
	MarkAlertSent(ctx context.Context, id uuid.UUID, threshold int) (bool, error)

	// NearExpiry lists open matches whose expiry falls before the cutoff.
	// Participants are not loaded.
	NearExpiry(ctx context.Context, cutoff time.Time) ([]Match, error)

	// CreateInvite persists a pending invite. ErrConflict when a pending
	// invite for the same (match, invitee) already exists.
	CreateInvite(ctx context.Context, invite Invite) error

	GetInvite(ctx context.Context, id uuid.UUID) (Invite, error)

	// PendingInviteFor resolves the pending invite addressed to a user on a
	// match. ErrNotFound when none is pending.
	PendingInviteFor(ctx context.Context, matchID, inviteeID uuid.UUID) (Invite, error)

	// AcceptInvite atomically re-checks the participant cap and match status,
	// appends the invitee and marks the invite accepted. When the cap was hit
	// by a concurrent accept the invite is marked rejected and
	// ErrCapacityExceeded is returned. ErrInvalidState when the match is not
	// open, ErrConflict when the invite is no longer pending.
	AcceptInvite(ctx context.Context, inviteID uuid.UUID) error

	// RejectInvite conditionally moves a pending invite to rejected.
	// ErrConflict when the invite is no longer pending.
	RejectInvite(ctx context.Context, inviteID uuid.UUID) error
}
