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

type AcceptInviteCommand struct {
	ActorID uuid.UUID `json:"-"`
	MatchID uuid.UUID `json:"-"`

	// InviteID is optional; when absent the pending invite addressed to the
	// actor on this match is resolved.
	InviteID uuid.UUID `json:"inviteId"`
}

func (c AcceptInviteCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	return nil
}

func (c AcceptInviteCommand) ActionKey() string {
	return fmt.Sprintf("%s:match:accept:%s", c.ActorID, c.MatchID)
}

func HandleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command, err := core.RequestBody[AcceptInviteCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.ActorID = core.Session(ctx).UserID
	command.MatchID = matchID

	_, err = mediator.Send[AcceptInviteCommand, core.Unit](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, nil)
}

type AcceptInviteCommandHandler struct {
	store domain.MatchStore
	rooms room.Gateway
}

func NewAcceptInviteCommandHandler(store domain.MatchStore, rooms room.Gateway) *AcceptInviteCommandHandler {
	return &AcceptInviteCommandHandler{store, rooms}
}

func (h *AcceptInviteCommandHandler) Handle(
	ctx context.Context,
	request AcceptInviteCommand,
) (core.Unit, error) {
	invite, err := resolveInvite(ctx, h.store, request.MatchID, request.ActorID, request.InviteID)
	if err != nil {
		return core.Unit{}, err
	}

	match, err := h.store.GetMatch(ctx, invite.MatchID)
	if err != nil {
		return core.Unit{}, commandError(err)
	}

	// The cap is checked inside the store's accept, atomically with the
	// append, so concurrent accepts cannot overshoot it.
	if err := h.store.AcceptInvite(ctx, invite.ID); err != nil {
		return core.Unit{}, commandError(err)
	}

	if err := h.rooms.AddMember(ctx, match.RoomID, invite.InviteeID); err != nil {
		core.LogError(ctx, "failed to add accepted invitee to room",
			zap.Error(err),
			zap.String("match_id", invite.MatchID.String()),
			zap.String("room_id", match.RoomID),
			zap.String("user_id", invite.InviteeID.String()),
		)
	}

	if err := h.rooms.PostSystemMessage(ctx, match.RoomID, "A new participant joined the room."); err != nil {
		core.LogError(ctx, "failed to post join notice",
			zap.Error(err),
			zap.String("match_id", invite.MatchID.String()),
			zap.String("room_id", match.RoomID),
		)
	}

	return core.Unit{}, nil
}

// resolveInvite finds the invite a user is acting on: by id when supplied
// (the id must belong to the match and address the actor), otherwise the
// pending invite for (match, actor).
func resolveInvite(
	ctx context.Context,
	store domain.MatchStore,
	matchID, actorID, inviteID uuid.UUID,
) (domain.Invite, error) {
	if inviteID == uuid.Nil {
		invite, err := store.PendingInviteFor(ctx, matchID, actorID)
		if err != nil {
			return domain.Invite{}, commandError(err)
		}
		return invite, nil
	}

	invite, err := store.GetInvite(ctx, inviteID)
	if err != nil {
		return domain.Invite{}, commandError(err)
	}

	if invite.MatchID != matchID {
		return domain.Invite{}, commandError(
			fmt.Errorf("%w: invite %s does not belong to match %s", domain.ErrNotFound, inviteID, matchID),
		)
	}

	if invite.InviteeID != actorID {
		return domain.Invite{}, core.NewCommandError(
			403,
			fmt.Errorf("invite %s is not addressed to user %s", inviteID, actorID),
		)
	}

	return invite, nil
}
