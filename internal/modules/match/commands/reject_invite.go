package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

type RejectInviteCommand struct {
	ActorID uuid.UUID `json:"-"`
	MatchID uuid.UUID `json:"-"`

	// InviteID is optional, resolved like AcceptInviteCommand's.
	InviteID uuid.UUID `json:"inviteId"`
}

func (c RejectInviteCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	return nil
}

func (c RejectInviteCommand) ActionKey() string {
	return fmt.Sprintf("%s:match:reject:%s", c.ActorID, c.MatchID)
}

func HandleRejectInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command, err := core.RequestBody[RejectInviteCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.ActorID = core.Session(ctx).UserID
	command.MatchID = matchID

	_, err = mediator.Send[RejectInviteCommand, core.Unit](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type RejectInviteCommandHandler struct {
	store domain.MatchStore
}

func NewRejectInviteCommandHandler(store domain.MatchStore) *RejectInviteCommandHandler {
	return &RejectInviteCommandHandler{store}
}

func (h *RejectInviteCommandHandler) Handle(
	ctx context.Context,
	request RejectInviteCommand,
) (core.Unit, error) {
	invite, err := resolveInvite(ctx, h.store, request.MatchID, request.ActorID, request.InviteID)
	if err != nil {
		return core.Unit{}, err
	}

	if err := h.store.RejectInvite(ctx, invite.ID); err != nil {
		return core.Unit{}, commandError(err)
	}

	return core.Unit{}, nil
}
