// Package memory holds an in-process MatchStore used by simulation mode and
// by unit tests. Mutations hold a single lock for their full duration, which
// gives every operation the same linearizable behavior the SQL store gets
// from conditional writes and row locks.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/match/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*domain.Match
	invites map[uuid.UUID]*domain.Invite
}

var _ domain.MatchStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		matches: map[uuid.UUID]*domain.Match{},
		invites: map[uuid.UUID]*domain.Invite{},
	}
}

func (s *Store) CreateMatch(
	ctx context.Context,
	match domain.Match,
	createRoom func(context.Context) (string, error),
) (domain.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.matches {
		if existing.Status == domain.MatchStatusOpen &&
			existing.Origin == match.Origin &&
			existing.PairKey == match.PairKey {
			return clone(existing, true), false, nil
		}
	}

	roomID, err := createRoom(ctx)
	if err != nil {
		return domain.Match{}, false, err
	}

	match.RoomID = roomID
	stored := clone(&match, true)
	s.matches[match.ID] = &stored

	return clone(&stored, true), true, nil
}

func (s *Store) GetMatch(_ context.Context, id uuid.UUID) (domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}

	return clone(match, true), nil
}

func (s *Store) CloseMatch(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return domain.ErrNotFound
	}

	match.Status = domain.MatchStatusClosed
	return nil
}

func (s *Store) RemoveParticipant(_ context.Context, matchID, userID uuid.UUID) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[matchID]
	if !ok {
		return false, 0, domain.ErrNotFound
	}

	remaining := match.Participants[:0]
	removed := false
	for _, p := range match.Participants {
		if p.UserID == userID {
			removed = true
			continue
		}
		remaining = append(remaining, p)
	}
	match.Participants = remaining

	return removed, len(remaining), nil
}

func (s *Store) RestoreMatch(_ context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return false, domain.ErrNotFound
	}

	if match.Status != domain.MatchStatusExpired {
		return false, nil
	}

	match.Status = domain.MatchStatusOpen
	match.ExpiresAt = expiresAt
	match.AlertsSent = nil
	return true, nil
}

func (s *Store) ExpireMatch(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return false, domain.ErrNotFound
	}

	if match.Status != domain.MatchStatusOpen {
		return false, nil
	}

	match.Status = domain.MatchStatusExpired
	return true, nil
}

func (s *Store) MarkAlertSent(_ context.Context, id uuid.UUID, threshold int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[id]
	if !ok {
		return false, domain.ErrNotFound
	}

	if match.Status != domain.MatchStatusOpen || match.AlertSent(threshold) {
		return false, nil
	}

	match.AlertsSent = append(match.AlertsSent, threshold)
	return true, nil
}

func (s *Store) NearExpiry(_ context.Context, cutoff time.Time) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.Match
	for _, match := range s.matches {
		if match.Status == domain.MatchStatusOpen && match.ExpiresAt.Before(cutoff) {
			due = append(due, clone(match, false))
		}
	}

	return due, nil
}

func (s *Store) CreateInvite(_ context.Context, invite domain.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invites {
		if existing.MatchID == invite.MatchID &&
			existing.InviteeID == invite.InviteeID &&
			existing.Status == domain.InviteStatusPending {
			return domain.ErrConflict
		}
	}

	stored := invite
	s.invites[invite.ID] = &stored
	return nil
}

func (s *Store) GetInvite(_ context.Context, id uuid.UUID) (domain.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[id]
	if !ok {
		return domain.Invite{}, domain.ErrNotFound
	}

	return *invite, nil
}

func (s *Store) PendingInviteFor(_ context.Context, matchID, inviteeID uuid.UUID) (domain.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, invite := range s.invites {
		if invite.MatchID == matchID &&
			invite.InviteeID == inviteeID &&
			invite.Status == domain.InviteStatusPending {
			return *invite, nil
		}
	}

	return domain.Invite{}, domain.ErrNotFound
}

func (s *Store) AcceptInvite(_ context.Context, inviteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok {
		return domain.ErrNotFound
	}

	if invite.Status != domain.InviteStatusPending {
		return domain.ErrConflict
	}

	match, ok := s.matches[invite.MatchID]
	if !ok {
		return domain.ErrNotFound
	}

	if match.Status != domain.MatchStatusOpen {
		return domain.ErrInvalidState
	}

	if len(match.Participants) >= domain.ParticipantCap {
		invite.Status = domain.InviteStatusRejected
		return domain.ErrCapacityExceeded
	}

	if !match.HasParticipant(invite.InviteeID) {
		position := 0
		for _, p := range match.Participants {
			if p.Position > position {
				position = p.Position
			}
		}
		match.Participants = append(match.Participants, domain.Participant{
			UserID:   invite.InviteeID,
			Position: position + 1,
			JoinedAt: time.Now().UTC(),
		})
	}
	invite.Status = domain.InviteStatusAccepted

	return nil
}

func (s *Store) RejectInvite(_ context.Context, inviteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok {
		return domain.ErrNotFound
	}

	if invite.Status != domain.InviteStatusPending {
		return domain.ErrConflict
	}

	invite.Status = domain.InviteStatusRejected
	return nil
}

func clone(match *domain.Match, withParticipants bool) domain.Match {
	capture := *match
	capture.AlertsSent = append([]int(nil), match.AlertsSent...)
	capture.Participants = nil
	if withParticipants {
		capture.Participants = append([]domain.Participant(nil), match.Participants...)
	}
	return capture
}
