package queries

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

type GetMembersQuery struct {
	ActorID uuid.UUID
	MatchID uuid.UUID
}

func (q GetMembersQuery) Validate() error {
	if q.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", q.ActorID)
	}

	if q.MatchID == uuid.Nil {
		return fmt.Errorf("invalid MatchID - '%s'", q.MatchID)
	}

	return nil
}

type MemberModel struct {
	UserID   uuid.UUID `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

func HandleGetMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.WriteBadRequest(w, r, fmt.Errorf("invalid match id"))
		return
	}

	query := GetMembersQuery{
		ActorID: core.Session(ctx).UserID,
		MatchID: matchID,
	}

	response, err := mediator.Send[GetMembersQuery, []MemberModel](ctx, query)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	core.WriteOK(w, r, response)
}

type GetMembersQueryHandler struct {
	store domain.MatchStore
}

func NewGetMembersQueryHandler(store domain.MatchStore) *GetMembersQueryHandler {
	return &GetMembersQueryHandler{store}
}

func (h *GetMembersQueryHandler) Handle(
	ctx context.Context,
	request GetMembersQuery,
) ([]MemberModel, error) {
	match, err := h.store.GetMatch(ctx, request.MatchID)
	if err != nil {
		return nil, core.NewCommandError(404, err)
	}

	// The room is anonymous to outsiders - only participants can list it.
	if !match.HasParticipant(request.ActorID) {
		return nil, core.NewCommandError(
			403,
			fmt.Errorf("user %s is not a participant of match %s", request.ActorID, request.MatchID),
		)
	}

	return core.Map(match.Participants, func(p domain.Participant) MemberModel {
		return MemberModel{UserID: p.UserID, JoinedAt: p.JoinedAt}
	}), nil
}
