package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func roomStub(context.Context) (string, error) {
	return "room-1", nil
}

func newMatch(participants int) domain.Match {
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
			{UserID: creator, Position: 1},
			{UserID: other, Position: 2},
		},
	}

	for i := 2; i < participants; i++ {
		match.Participants = append(match.Participants, domain.Participant{
			UserID:   uuid.New(),
			Position: i + 1,
		})
	}

	return match
}

func Test_CreateMatch_Stores_Match_With_Room(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)

	// Act
	created, ok, err := store.CreateMatch(context.Background(), match, roomStub)

	// Assert
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "room-1", created.RoomID)

	stored, err := store.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.Len(t, stored.Participants, 2)
}

func Test_CreateMatch_Returns_Existing_Open_Match_For_Same_Pair(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)

	first, ok, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)
	require.True(t, ok)

	duplicate := match
	duplicate.ID = uuid.New()

	// Act
	second, ok, err := store.CreateMatch(context.Background(), duplicate, roomStub)

	// Assert
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, first.ID, second.ID)
}

func Test_CreateMatch_Allows_New_Match_After_Close(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)

	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)
	require.NoError(t, store.CloseMatch(context.Background(), match.ID))

	retry := match
	retry.ID = uuid.New()

	// Act
	_, ok, err := store.CreateMatch(context.Background(), retry, roomStub)

	// Assert
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_CreateMatch_Does_Not_Store_Match_When_Room_Creation_Fails(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	roomErr := errors.New("gateway down")

	// Act
	_, _, err := store.CreateMatch(context.Background(), match, func(context.Context) (string, error) {
		return "", roomErr
	})

	// Assert
	require.ErrorIs(t, err, roomErr)

	_, err = store.GetMatch(context.Background(), match.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func Test_RemoveParticipant_Reports_Remaining_Count(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(3)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	// Act
	removed, remaining, err := store.RemoveParticipant(
		context.Background(),
		match.ID,
		match.Participants[1].UserID,
	)

	// Assert
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 2, remaining)
}

func Test_RemoveParticipant_Is_A_NoOp_For_Unknown_User(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	// Act
	removed, remaining, err := store.RemoveParticipant(context.Background(), match.ID, uuid.New())

	// Assert
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, 2, remaining)
}

func Test_ExpireMatch_Only_Moves_Open_Matches(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	// Act
	expired, err := store.ExpireMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.True(t, expired)

	again, err := store.ExpireMatch(context.Background(), match.ID)

	// Assert
	require.NoError(t, err)
	require.False(t, again)
}

func Test_RestoreMatch_Resets_Expiry_And_Alerts(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	marked, err := store.MarkAlertSent(context.Background(), match.ID, 4)
	require.NoError(t, err)
	require.True(t, marked)

	expired, err := store.ExpireMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.True(t, expired)

	newExpiry := time.Now().Add(24 * time.Hour)

	// Act
	restored, err := store.RestoreMatch(context.Background(), match.ID, newExpiry)

	// Assert
	require.NoError(t, err)
	require.True(t, restored)

	stored, err := store.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.Equal(t, domain.MatchStatusOpen, stored.Status)
	require.Equal(t, newExpiry, stored.ExpiresAt)
	require.Empty(t, stored.AlertsSent)
}

func Test_RestoreMatch_Rejects_Open_And_Closed_Matches(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	// Act
	restored, err := store.RestoreMatch(context.Background(), match.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.False(t, restored)

	require.NoError(t, store.CloseMatch(context.Background(), match.ID))
	restored, err = store.RestoreMatch(context.Background(), match.ID, time.Now().Add(time.Hour))

	// Assert
	require.NoError(t, err)
	require.False(t, restored)
}

func Test_MarkAlertSent_Records_Each_Threshold_Once(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	// Act
	first, err := store.MarkAlertSent(context.Background(), match.ID, 4)
	require.NoError(t, err)

	second, err := store.MarkAlertSent(context.Background(), match.ID, 4)

	// Assert
	require.NoError(t, err)
	require.True(t, first)
	require.False(t, second)
}

func Test_NearExpiry_Returns_Open_Matches_Inside_Cutoff(t *testing.T) {
	// Arrange
	store := NewStore()

	near := newMatch(2)
	near.ExpiresAt = time.Now().Add(2 * time.Hour)
	_, _, err := store.CreateMatch(context.Background(), near, roomStub)
	require.NoError(t, err)

	far := newMatch(2)
	far.ExpiresAt = time.Now().Add(48 * time.Hour)
	_, _, err = store.CreateMatch(context.Background(), far, roomStub)
	require.NoError(t, err)

	// Act
	due, err := store.NearExpiry(context.Background(), time.Now().Add(5*time.Hour))

	// Assert
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, near.ID, due[0].ID)
}

func Test_CreateInvite_Rejects_Second_Pending_Invite_For_Same_Invitee(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	inviteeID := uuid.New()
	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: inviteeID,
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), invite))

	duplicate := invite
	duplicate.ID = uuid.New()

	// Act
	err = store.CreateInvite(context.Background(), duplicate)

	// Assert
	require.ErrorIs(t, err, domain.ErrConflict)
}

func Test_CreateInvite_Allows_New_Invite_After_Rejection(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: uuid.New(),
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), invite))
	require.NoError(t, store.RejectInvite(context.Background(), invite.ID))

	retry := invite
	retry.ID = uuid.New()

	// Act
	err = store.CreateInvite(context.Background(), retry)

	// Assert
	require.NoError(t, err)
}

func Test_AcceptInvite_Adds_Participant_With_Next_Position(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(3)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	_, _, err = store.RemoveParticipant(context.Background(), match.ID, match.Participants[1].UserID)
	require.NoError(t, err)

	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: uuid.New(),
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), invite))

	// Act
	err = store.AcceptInvite(context.Background(), invite.ID)

	// Assert
	require.NoError(t, err)

	stored, err := store.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.Len(t, stored.Participants, 3)
	// A position is never reused after a leave.
	require.Equal(t, 4, stored.Participants[2].Position)
}

func Test_AcceptInvite_At_Capacity_Rejects_Invite(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(domain.ParticipantCap - 1)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	first := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: uuid.New(),
		Status:    domain.InviteStatusPending,
	}
	second := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: uuid.New(),
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), first))
	require.NoError(t, store.CreateInvite(context.Background(), second))

	// Act
	require.NoError(t, store.AcceptInvite(context.Background(), first.ID))
	err = store.AcceptInvite(context.Background(), second.ID)

	// Assert
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	rejected, getErr := store.GetInvite(context.Background(), second.ID)
	require.NoError(t, getErr)
	require.Equal(t, domain.InviteStatusRejected, rejected.Status)

	stored, getErr := store.GetMatch(context.Background(), match.ID)
	require.NoError(t, getErr)
	require.Len(t, stored.Participants, domain.ParticipantCap)
}

func Test_AcceptInvite_Rejects_Non_Pending_Invite(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: uuid.New(),
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), invite))
	require.NoError(t, store.AcceptInvite(context.Background(), invite.ID))

	// Act
	err = store.AcceptInvite(context.Background(), invite.ID)

	// Assert
	require.ErrorIs(t, err, domain.ErrConflict)
}

func Test_PendingInviteFor_Finds_Only_Pending_Invites(t *testing.T) {
	// Arrange
	store := NewStore()
	match := newMatch(2)
	_, _, err := store.CreateMatch(context.Background(), match, roomStub)
	require.NoError(t, err)

	inviteeID := uuid.New()
	invite := domain.Invite{
		ID:        uuid.New(),
		MatchID:   match.ID,
		InviterID: match.CreatorID,
		InviteeID: inviteeID,
		Status:    domain.InviteStatusPending,
	}
	require.NoError(t, store.CreateInvite(context.Background(), invite))

	// Act
	found, err := store.PendingInviteFor(context.Background(), match.ID, inviteeID)
	require.NoError(t, err)
	require.Equal(t, invite.ID, found.ID)

	require.NoError(t, store.RejectInvite(context.Background(), invite.ID))
	_, err = store.PendingInviteFor(context.Background(), match.ID, inviteeID)

	// Assert
	require.ErrorIs(t, err, domain.ErrNotFound)
}
