package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/eskrenkovic/mediator-go"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
)

type CreateInviteCommand struct {
	ActorID   uuid.UUID `json:"-"`
	MatchID   uuid.UUID `json:"-"`
	InviteeID uuid.UUID `json:"inviteeId"`
}

func (c CreateInviteCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", c.MatchID)
	}

	if c.InviteeID == uuid.Nil {
		return fmt.Errorf("invalid InviteeID - '%s'", c.InviteeID)
	}

	return nil
}

type CreateInviteResponse struct {
	InviteID uuid.UUID `json:"inviteId"`
}

func HandleCreateInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	command, err := core.RequestBody[CreateInviteCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.ActorID = core.Session(ctx).UserID
	command.MatchID = matchID

	response, err := mediator.Send[CreateInviteCommand, CreateInviteResponse](ctx, command)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type CreateInviteCommandHandler struct {
	store domain.MatchStore
	now   func() time.Time
}

func NewCreateInviteCommandHandler(store domain.MatchStore) *CreateInviteCommandHandler {
	return &CreateInviteCommandHandler{store, time.Now}
}

func (h *CreateInviteCommandHandler) Handle(
	ctx context.Context,
	request CreateInviteCommand,
) (CreateInviteResponse, error) {
	match, err := h.store.GetMatch(ctx, request.MatchID)
	if err != nil {
		return CreateInviteResponse{}, commandError(err)
	}

	if !match.HasParticipant(request.ActorID) {
		return CreateInviteResponse{}, core.NewCommandError(
			403,
			fmt.Errorf("user %s is not a participant of match %s", request.ActorID, request.MatchID),
		)
	}

	if request.InviteeID == request.ActorID {
		return CreateInviteResponse{}, core.NewCommandError(
			403,
			fmt.Errorf("user %s cannot invite themselves", request.ActorID),
		)
	}

	if match.Status != domain.MatchStatusOpen {
		return CreateInviteResponse{}, commandError(
			fmt.Errorf("%w: invites require an open match, status is %s", domain.ErrInvalidState, match.Status),
		)
	}

	if match.HasParticipant(request.InviteeID) {
		return CreateInviteResponse{}, commandError(
			fmt.Errorf("%w: user %s is already a participant", domain.ErrConflict, request.InviteeID),
		)
	}

	if len(match.Participants) >= domain.ParticipantCap {
		return CreateInviteResponse{}, commandError(
			fmt.Errorf("%w: match %s already has %d participants", domain.ErrCapacityExceeded, request.MatchID, domain.ParticipantCap),
		)
	}

	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   request.MatchID,
		InviterID: request.ActorID,
		InviteeID: request.InviteeID,
		Status:    domain.InviteStatusPending,
		CreatedAt: h.now().UTC(),
	}

	if err := h.store.CreateInvite(ctx, invite); err != nil {
		return CreateInviteResponse{}, commandError(err)
	}

	return CreateInviteResponse{InviteID: invite.ID}, nil
}
