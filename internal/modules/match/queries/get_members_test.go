package queries

import (
	"context"
	"testing"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/match/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func seedMatch(t *testing.T, store *memory.Store) domain.Match {
	t.Helper()

	creator := uuid.New()
	other := uuid.New()
	match := domain.Match{
		ID:        uuid.New(),
		Origin:    domain.Origin{Kind: domain.OriginKindPost, RefID: uuid.New().String()},
		CreatorID: creator,
		Status:    domain.MatchStatusOpen,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		PairKey:   domain.PairKey(creator, other),
		CreatedAt: time.Now(),
		Participants: []domain.Participant{
			{UserID: creator, Position: 1, JoinedAt: time.Now()},
			{UserID: other, Position: 2, JoinedAt: time.Now()},
		},
	}

	created, ok, err := store.CreateMatch(context.Background(), match, func(context.Context) (string, error) {
		return "room-1", nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	return created
}

func Test_GetMembers_Returns_Participants_In_Join_Order(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	match := seedMatch(t, store)

	handler := NewGetMembersQueryHandler(store)

	// Act
	members, err := handler.Handle(context.Background(), GetMembersQuery{
		ActorID: match.CreatorID,
		MatchID: match.ID,
	})

	// Assert
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, match.Participants[0].UserID, members[0].UserID)
	require.Equal(t, match.Participants[1].UserID, members[1].UserID)
}

func Test_GetMembers_Rejects_Non_Participant(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	match := seedMatch(t, store)

	handler := NewGetMembersQueryHandler(store)

	// Act
	_, err := handler.Handle(context.Background(), GetMembersQuery{
		ActorID: uuid.New(),
		MatchID: match.ID,
	})

	// Assert
	var commandErr core.CommandError
	require.ErrorAs(t, err, &commandErr)
	require.Equal(t, 403, commandErr.StatusCode)
}

func Test_GetMembers_Returns_404_For_Unknown_Match(t *testing.T) {
	// Arrange
	handler := NewGetMembersQueryHandler(memory.NewStore())

	// Act
	_, err := handler.Handle(context.Background(), GetMembersQuery{
		ActorID: uuid.New(),
		MatchID: uuid.New(),
	})

	// Assert
	var commandErr core.CommandError
	require.ErrorAs(t, err, &commandErr)
	require.Equal(t, 404, commandErr.StatusCode)
}
