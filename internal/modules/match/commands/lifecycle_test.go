package commands

import (
	"context"
	"testing"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_CloseMatch_Closes_Match_And_Archives_Room(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())

	handler := NewCloseMatchCommandHandler(f.store, f.rooms)

	// Act
	_, err := handler.Handle(context.Background(), CloseMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusClosed, stored.Status)

	recorded, ok := f.rooms.Room(match.RoomID)
	require.True(t, ok)
	require.True(t, recorded.Archived)
}

func Test_CloseMatch_Is_A_NoOp_On_Closed_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())

	handler := NewCloseMatchCommandHandler(f.store, f.rooms)
	_, err := handler.Handle(context.Background(), CloseMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})
	require.NoError(t, err)

	// Act
	_, err = handler.Handle(context.Background(), CloseMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)
}

func Test_CloseMatch_Rejects_Non_Participant(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	match := f.createMatch(t, uuid.New(), uuid.New())

	handler := NewCloseMatchCommandHandler(f.store, f.rooms)

	// Act
	_, err := handler.Handle(context.Background(), CloseMatchCommand{
		ActorID: uuid.New(),
		MatchID: match.MatchID,
	})

	// Assert
	require.Equal(t, 403, commandStatusCode(t, err))
}

func Test_CloseMatch_Returns_404_For_Unknown_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	handler := NewCloseMatchCommandHandler(f.store, f.rooms)

	// Act
	_, err := handler.Handle(context.Background(), CloseMatchCommand{
		ActorID: uuid.New(),
		MatchID: uuid.New(),
	})

	// Assert
	require.Equal(t, 404, commandStatusCode(t, err))
}

func Test_LeaveMatch_Removes_Participant_From_Match_And_Room(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	postAuthorID := uuid.New()
	match := f.createMatch(t, actorID, postAuthorID)

	handler := NewLeaveMatchCommandHandler(f.store, f.rooms)

	// Act
	_, err := handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: postAuthorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusOpen, stored.Status)
	require.False(t, stored.HasParticipant(postAuthorID))

	recorded, ok := f.rooms.Room(match.RoomID)
	require.True(t, ok)
	require.NotContains(t, recorded.Members, postAuthorID)
}

func Test_LeaveMatch_Closes_Match_When_Last_Participant_Leaves(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	postAuthorID := uuid.New()
	match := f.createMatch(t, actorID, postAuthorID)

	handler := NewLeaveMatchCommandHandler(f.store, f.rooms)

	_, err := handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: postAuthorID,
		MatchID: match.MatchID,
	})
	require.NoError(t, err)

	// Act
	_, err = handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusClosed, stored.Status)

	recorded, ok := f.rooms.Room(match.RoomID)
	require.True(t, ok)
	require.True(t, recorded.Archived)
}

func Test_LeaveMatch_Is_A_NoOp_For_Former_Participant(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	postAuthorID := uuid.New()
	match := f.createMatch(t, actorID, postAuthorID)

	handler := NewLeaveMatchCommandHandler(f.store, f.rooms)
	_, err := handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: postAuthorID,
		MatchID: match.MatchID,
	})
	require.NoError(t, err)

	// Act
	_, err = handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: postAuthorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusOpen, stored.Status)
}

func Test_LeaveMatch_Is_A_NoOp_On_Closed_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())
	require.NoError(t, f.store.CloseMatch(context.Background(), match.MatchID))

	handler := NewLeaveMatchCommandHandler(f.store, f.rooms)

	// Act
	_, err := handler.Handle(context.Background(), LeaveMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.True(t, stored.HasParticipant(actorID))
}

func Test_RestoreMatch_Reopens_Expired_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())

	expired, err := f.store.ExpireMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.True(t, expired)

	handler := NewRestoreMatchCommandHandler(f.store, f.rooms, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	// Act
	response, err := handler.Handle(context.Background(), RestoreMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, now.Add(DefaultTTL), response.ExpiresAt)

	stored, err := f.store.GetMatch(context.Background(), match.MatchID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusOpen, stored.Status)
	require.Empty(t, stored.AlertsSent)

	recorded, ok := f.rooms.Room(match.RoomID)
	require.True(t, ok)
	require.Contains(t, recorded.Messages[len(recorded.Messages)-1], "Room restored")
}

func Test_RestoreMatch_Honors_Requested_TTL(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())

	_, err := f.store.ExpireMatch(context.Background(), match.MatchID)
	require.NoError(t, err)

	handler := NewRestoreMatchCommandHandler(f.store, f.rooms, 0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler.now = func() time.Time { return now }

	// Act
	response, err := handler.Handle(context.Background(), RestoreMatchCommand{
		ActorID:  actorID,
		MatchID:  match.MatchID,
		TTLHours: 6,
	})

	// Assert
	require.NoError(t, err)
	require.Equal(t, now.Add(6*time.Hour), response.ExpiresAt)
}

func Test_RestoreMatch_Rejects_Open_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())

	handler := NewRestoreMatchCommandHandler(f.store, f.rooms, 0)

	// Act
	_, err := handler.Handle(context.Background(), RestoreMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.Equal(t, 422, commandStatusCode(t, err))
}

func Test_RestoreMatch_Rejects_Closed_Match(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	actorID := uuid.New()
	match := f.createMatch(t, actorID, uuid.New())
	require.NoError(t, f.store.CloseMatch(context.Background(), match.MatchID))

	handler := NewRestoreMatchCommandHandler(f.store, f.rooms, 0)

	// Act
	_, err := handler.Handle(context.Background(), RestoreMatchCommand{
		ActorID: actorID,
		MatchID: match.MatchID,
	})

	// Assert
	require.Equal(t, 422, commandStatusCode(t, err))
}

func Test_RestoreMatch_Rejects_Non_Participant(t *testing.T) {
	// Arrange
	f := newHandlerFixture()
	match := f.createMatch(t, uuid.New(), uuid.New())

	_, err := f.store.ExpireMatch(context.Background(), match.MatchID)
	require.NoError(t, err)

	handler := NewRestoreMatchCommandHandler(f.store, f.rooms, 0)

	// Act
	_, err = handler.Handle(context.Background(), RestoreMatchCommand{
		ActorID: uuid.New(),
		MatchID: match.MatchID,
	})

	// Assert
	require.Equal(t, 403, commandStatusCode(t, err))
}
