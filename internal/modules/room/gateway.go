package room

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnavailable marks a gateway failure that survived the retry budget.
// The store state is authoritative; callers log these for reconciliation
// rather than rolling back.
var ErrUnavailable = errors.New("room gateway unavailable")

// Gateway abstracts the messaging platform hosting the anonymous rooms.
// Every operation is safe to retry: adding a present member or removing an
// absent one is a no-op, and archiving is reversible on the platform side,
// never a hard delete.
type Gateway interface {
	CreateRoom(ctx context.Context, members []uuid.UUID) (roomID string, err error)
	AddMember(ctx context.Context, roomID string, userID uuid.UUID) error
	RemoveMember(ctx context.Context, roomID string, userID uuid.UUID) error
	PostSystemMessage(ctx context.Context, roomID, text string) error
	ArchiveRoom(ctx context.Context, roomID string) error
}
