package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/room"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RestoreMatchCommand struct {
	ActorID  uuid.UUID `json:"-"`
	MatchID  uuid.UUID `json:"-"`
	TTLHours int       `json:"ttlHours"`
}

func (c RestoreMatchCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	if c.TTLHours < 0 {
		return fmt.Errorf("invalid TTLHours - '%d'", c.TTLHours)
	}

	return nil
}

type RestoreMatchResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

func HandleRestoreMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command, err := core.RequestBody[RestoreMatchCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.ActorID = core.Session(ctx).UserID
	command.MatchID = matchID

	response, err := mediator.Send[RestoreMatchCommand, RestoreMatchResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type RestoreMatchCommandHandler struct {
	store      domain.MatchStore
	rooms      room.Gateway
	defaultTTL time.Duration
	now        func() time.Time
}

func NewRestoreMatchCommandHandler(
	store domain.MatchStore,
	rooms room.Gateway,
	defaultTTL time.Duration,
) *RestoreMatchCommandHandler {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &RestoreMatchCommandHandler{store, rooms, defaultTTL, time.Now}
}

func (h *RestoreMatchCommandHandler) Handle(
	ctx context.Context,
	request RestoreMatchCommand,
) (RestoreMatchResponse, error) {
	match, err := h.store.GetMatch(ctx, request.MatchID)
	if err != nil {
		return RestoreMatchResponse{}, commandError(err)
	}

	// Participant history is retained through expiry, so membership still
	// authorizes the restore.
	if !match.HasParticipant(request.ActorID) {
		return RestoreMatchResponse{}, core.NewCommandError(
			403,
			fmt.Errorf("user %s is not a participant of match %s", request.ActorID, request.MatchID),
		)
	}

	if match.Status != domain.MatchStatusExpired {
		return RestoreMatchResponse{}, commandError(
			fmt.Errorf("%w: restore requires an expired match, status is %s", domain.ErrInvalidState, match.Status),
		)
	}

	ttl := h.defaultTTL
	if request.TTLHours > 0 {
		ttl = time.Duration(request.TTLHours) * time.Hour
	}
	expiresAt := h.now().UTC().Add(ttl)

	restored, err := h.store.RestoreMatch(ctx, request.MatchID, expiresAt)
	if err != nil {
		return RestoreMatchResponse{}, commandError(err)
	}
	if !restored {
		// The conditional write lost a race - the match is no longer expired.
		return RestoreMatchResponse{}, commandError(
			fmt.Errorf("%w: match %s is no longer expired", domain.ErrInvalidState, request.MatchID),
		)
	}

	notice := fmt.Sprintf("Room restored. It closes in %dh unless restored again.", int(ttl.Hours()))
	if err := h.rooms.PostSystemMessage(ctx, match.RoomID, notice); err != nil {
		core.LogError(ctx, "failed to post restore notice",
			zap.Error(err),
			zap.String("match_id", request.MatchID.String()),
			zap.String("room_id", match.RoomID),
		)
	}

	return RestoreMatchResponse{ExpiresAt: expiresAt}, nil
}
