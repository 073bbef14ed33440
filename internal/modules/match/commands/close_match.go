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

type CloseMatchCommand struct {
	ActorID uuid.UUID `json:"-"`
	MatchID uuid.UUID `json:"-"`
}

func (c CloseMatchCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	return nil
}

func HandleCloseMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command := CloseMatchCommand{
		ActorID: core.Session(ctx).UserID,
		MatchID: matchID,
	}

	_, err = mediator.Send[CloseMatchCommand, core.Unit](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type CloseMatchCommandHandler struct {
	store domain.MatchStore
	rooms room.Gateway
}

func NewCloseMatchCommandHandler(store domain.MatchStore, rooms room.Gateway) *CloseMatchCommandHandler {
	return &CloseMatchCommandHandler{store, rooms}
}

func (h *CloseMatchCommandHandler) Handle(
	ctx context.Context,
	request CloseMatchCommand,
) (core.Unit, error) {
	match, err := h.store.GetMatch(ctx, request.MatchID)
	if err != nil {
		return core.Unit{}, commandError(err)
	}

	if !match.HasParticipant(request.ActorID) {
		return core.Unit{}, core.NewCommandError(
			403,
			fmt.Errorf("user %s is not a participant of match %s", request.ActorID, request.MatchID),
		)
	}

	// Closing an already closed match is a no-op success.
	if match.Status == domain.MatchStatusClosed {
		return core.Unit{}, nil
	}

	if err := h.store.CloseMatch(ctx, request.MatchID); err != nil {
		return core.Unit{}, commandError(err)
	}

	// The store state is authoritative; an archive failure after the status
	// write is logged for reconciliation, not rolled back.
	if err := h.rooms.ArchiveRoom(ctx, match.RoomID); err != nil {
		core.LogError(ctx, "failed to archive room for closed match",
			zap.Error(err),
			zap.String("match_id", request.MatchID.String()),
			zap.String("room_id", match.RoomID),
		)
	}

	return core.Unit{}, nil
}
