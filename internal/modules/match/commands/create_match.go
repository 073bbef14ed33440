package commands

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/room"

	"github.com/eskrenkovic/mediator-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL is how long a freshly opened room lives unless restored.
const DefaultTTL = 24 * time.Hour

type CreateMatchCommand struct {
	ActorID      uuid.UUID `json:"-"`
	PostID       string    `json:"postId"`
	PostAuthorID uuid.UUID `json:"postAuthorId"`
	TTLHours     int       `json:"ttlHours"`
}

func (c CreateMatchCommand) Validate() error {
	if c.ActorID == uuid.Nil {
		return fmt.Errorf("invalid ActorID - '%s'", c.ActorID)
	}

	if c.PostID == "" {
		return fmt.Errorf("invalid PostID - '%s'", c.PostID)
	}

	if c.PostAuthorID == uuid.Nil {
		return fmt.Errorf("invalid PostAuthorID - '%s'", c.PostAuthorID)
	}

	if c.TTLHours < 0 {
		return fmt.Errorf("invalid TTLHours - '%d'", c.TTLHours)
	}

	return nil
}

func (c CreateMatchCommand) ActionKey() string {
	return fmt.Sprintf("%s:match:post:%s", c.ActorID, c.PostID)
}

type CreateMatchResponse struct {
	MatchID uuid.UUID `json:"matchId"`
	RoomID  string    `json:"roomId"`
	Created bool      `json:"created"`
}

func HandleCreateMatch(w http.ResponseWriter, r *http.Request) {
	command, err := core.RequestBody[CreateMatchCommand](r)
	if err != nil {
		core.WriteBadRequest(w, r, err)
		return
	}
	command.ActorID = core.Session(r.Context()).UserID

	response, err := mediator.Send[CreateMatchCommand, CreateMatchResponse](
		r.Context(),
		command,
	)
	if err != nil {
		core.WriteCommandError(w, r, err)
		return
	}

	if !response.Created {
		core.WriteOK(w, r, response)
		return
	}

	location := path.Join(r.Host, "matches", response.MatchID.String())
	core.WriteCreated(w, r, location)
}

type CreateMatchCommandHandler struct {
	store      domain.MatchStore
	rooms      room.Gateway
	defaultTTL time.Duration
	now        func() time.Time
}

func NewCreateMatchCommandHandler(
	store domain.MatchStore,
	rooms room.Gateway,
	defaultTTL time.Duration,
) *CreateMatchCommandHandler {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &CreateMatchCommandHandler{store, rooms, defaultTTL, time.Now}
}

func (h *CreateMatchCommandHandler) Handle(
	ctx context.Context,
	request CreateMatchCommand,
) (CreateMatchResponse, error) {
	if request.ActorID == request.PostAuthorID {
		return CreateMatchResponse{}, core.NewCommandError(
			403,
			fmt.Errorf("user %s cannot match their own post", request.ActorID),
		)
	}

	ttl := h.defaultTTL
	if request.TTLHours > 0 {
		ttl = time.Duration(request.TTLHours) * time.Hour
	}

	now := h.now().UTC()
	match := domain.Match{
		ID:        uuid.New(),
		Origin:    domain.Origin{Kind: domain.OriginKindPost, RefID: request.PostID},
		CreatorID: request.ActorID,
		Status:    domain.MatchStatusOpen,
		ExpiresAt: now.Add(ttl),
		PairKey:   domain.PairKey(request.ActorID, request.PostAuthorID),
		CreatedAt: now,
		Participants: []domain.Participant{
			{UserID: request.ActorID, Position: 1, JoinedAt: now},
			{UserID: request.PostAuthorID, Position: 2, JoinedAt: now},
		},
	}

	members := []uuid.UUID{request.ActorID, request.PostAuthorID}
	persisted, created, err := h.store.CreateMatch(ctx, match, func(ctx context.Context) (string, error) {
		return h.rooms.CreateRoom(ctx, members)
	})
	if err != nil {
		return CreateMatchResponse{}, commandError(err)
	}

	if created {
		notice := fmt.Sprintf("Anonymous room opened. It closes in %dh unless restored.", int(ttl.Hours()))
		if err := h.rooms.PostSystemMessage(ctx, persisted.RoomID, notice); err != nil {
			core.LogError(ctx, "failed to post room opening notice",
				zap.Error(err),
				zap.String("match_id", persisted.ID.String()),
				zap.String("room_id", persisted.RoomID),
			)
		}
	}

	return CreateMatchResponse{
		MatchID: persisted.ID,
		RoomID:  persisted.RoomID,
		Created: created,
	}, nil
}
