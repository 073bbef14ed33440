package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Recorder is an in-memory Gateway used by tests and by simulation mode
// when no messaging platform is configured.
type Recorder struct {
	mu    sync.Mutex
	seq   int
	rooms map[string]*RecordedRoom

	// CreateRoomErr, when set, fails the next CreateRoom call. Lets tests
	// exercise the create-room-failure rollback path.
	CreateRoomErr error
}

type RecordedRoom struct {
	Members  []uuid.UUID
	Messages []string
	Archived bool
}

var _ Gateway = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{rooms: map[string]*RecordedRoom{}}
}

func (r *Recorder) CreateRoom(_ context.Context, members []uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CreateRoomErr != nil {
		err := r.CreateRoomErr
		r.CreateRoomErr = nil
		return "", err
	}

	r.seq++
	roomID := fmt.Sprintf("room-%d", r.seq)
	r.rooms[roomID] = &RecordedRoom{Members: append([]uuid.UUID(nil), members...)}
	return roomID, nil
}

func (r *Recorder) AddMember(_ context.Context, roomID string, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recorded, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: unknown room %s", ErrUnavailable, roomID)
	}

	for _, member := range recorded.Members {
		if member == userID {
			return nil
		}
	}

	recorded.Members = append(recorded.Members, userID)
	return nil
}

func (r *Recorder) RemoveMember(_ context.Context, roomID string, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recorded, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: unknown room %s", ErrUnavailable, roomID)
	}

	members := recorded.Members[:0]
	for _, member := range recorded.Members {
		if member != userID {
			members = append(members, member)
		}
	}
	recorded.Members = members
	return nil
}

func (r *Recorder) PostSystemMessage(_ context.Context, roomID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recorded, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: unknown room %s", ErrUnavailable, roomID)
	}

	recorded.Messages = append(recorded.Messages, text)
	return nil
}

func (r *Recorder) ArchiveRoom(_ context.Context, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recorded, ok := r.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: unknown room %s", ErrUnavailable, roomID)
	}

	recorded.Archived = true
	return nil
}

// Room returns a copy of the recorded room state.
func (r *Recorder) Room(roomID string) (RecordedRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recorded, ok := r.rooms[roomID]
	if !ok {
		return RecordedRoom{}, false
	}

	capture := RecordedRoom{
		Members:  append([]uuid.UUID(nil), recorded.Members...),
		Messages: append([]string(nil), recorded.Messages...),
		Archived: recorded.Archived,
	}
	return capture, true
}
