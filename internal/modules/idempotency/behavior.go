package idempotency

import (
	"context"
	"errors"

	"github.com/velvetlane/matchroom/internal/modules/core"

	"github.com/eskrenkovic/mediator-go"
)

// ErrDuplicate is returned to a duplicate caller whose original action is
// still executing.
var ErrDuplicate = errors.New("action already being processed")

// Keyed is implemented by commands that should be deduplicated. The key is
// actor + verb + target, so two users acting on the same match do not
// collide.
type Keyed interface {
	ActionKey() string
}

var _ mediator.PipelineBehavior = (*Behavior)(nil)

// Behavior short-circuits duplicate commands before their handler runs.
// The first caller inside the window executes and its response is replayed
// to duplicates.
type Behavior struct {
	Guard *Guard
}

func (b *Behavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	keyed, ok := request.(Keyed)
	if !ok {
		return next(ctx, request)
	}

	key := keyed.ActionKey()

	first, response, inFlight := b.Guard.Claim(key)
	if !first {
		if inFlight {
			return nil, core.NewCommandError(409, ErrDuplicate, core.WithReason("duplicate_action"))
		}
		return response, nil
	}

	response, err := next(ctx, request)
	if err != nil {
		b.Guard.Release(key)
		return response, err
	}

	b.Guard.Complete(key, response)
	return response, err
}
