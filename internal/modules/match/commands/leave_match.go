package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/room"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LeaveMatchCommand struct {
	ActorID uuid.UUID `json:"-"`
	MatchID uuid.UUID `json:"-"`
}

func (c LeaveMatchCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	return nil
}

func (c LeaveMatchCommand) ActionKey() string {
	return fmt.Sprintf("%s:match:leave:%s", c.ActorID, c.MatchID)
}

func HandleLeaveMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command := LeaveMatchCommand{
		ActorID: core.Session(ctx).UserID,
		MatchID: matchID,
	}

	_, err = mediator.Send[LeaveMatchCommand, core.Unit](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type LeaveMatchCommandHandler struct {
	store domain.MatchStore
	rooms room.Gateway
}

func NewLeaveMatchCommandHandler(store domain.MatchStore, rooms room.Gateway) *LeaveMatchCommandHandler {
	return &LeaveMatchCommandHandler{store, rooms}
}

func (h *LeaveMatchCommandHandler) Handle(
	ctx context.Context,
	request LeaveMatchCommand,
) (core.Unit, error) {
	match, err := h.store.GetMatch(ctx, request.MatchID)
	if err != nil {
		return core.Unit{}, commandError(err)
	}

	// The room of a closed match is already archived; nothing left to leave.
	if match.Status == domain.MatchStatusClosed {
		return core.Unit{}, nil
	}

	removed, remaining, err := h.store.RemoveParticipant(ctx, request.MatchID, request.ActorID)
	if err != nil {
		return core.Unit{}, commandError(err)
	}

	// Leaving a match you already left is a no-op success.
	if !removed {
		return core.Unit{}, nil
	}

	if err := h.rooms.RemoveMember(ctx, match.RoomID, request.ActorID); err != nil {
		core.LogError(ctx, "failed to remove member from room",
			zap.Error(err),
			zap.String("match_id", request.MatchID.String()),
			zap.String("room_id", match.RoomID),
		)
	}

	if remaining > 0 {
		return core.Unit{}, nil
	}

	// Last participant out closes the match.
	if err := h.store.CloseMatch(ctx, request.MatchID); err != nil {
		return core.Unit{}, commandError(err)
	}

	if err := h.rooms.ArchiveRoom(ctx, match.RoomID); err != nil {
		core.LogError(ctx, "failed to archive room for emptied match",
			zap.Error(err),
			zap.String("match_id", request.MatchID.String()),
			zap.String("room_id", match.RoomID),
		)
	}

	return core.Unit{}, nil
}
