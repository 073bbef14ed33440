package commands

import (
	"errors"

	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/room"
)

// commandError maps store and gateway failures onto the HTTP-facing error
// taxonomy. Anything unrecognized is a 500.
func commandError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return core.NewCommandError(404, err)
	case errors.Is(err, domain.ErrCapacityExceeded):
		return core.NewCommandError(409, err, core.WithReason("capacity_exceeded"))
	case errors.Is(err, domain.ErrConflict):
		return core.NewCommandError(409, err)
	case errors.Is(err, domain.ErrInvalidState):
		return core.NewCommandError(422, err)
	case errors.Is(err, room.ErrUnavailable):
		return core.NewCommandError(502, err)
	default:
		return core.NewCommandError(500, err)
	}
}
