package core

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

type ContextKey string

const SessionContextKey ContextKey = "session"

// ActorIDHeader carries the acting user's id, set by the upstream command
// router after it has authenticated the user.
const ActorIDHeader = "X-Actor-Id"

type ContextSession struct {
	UserID uuid.UUID
}

func Session(ctx context.Context) ContextSession {
	rawVal := ctx.Value(SessionContextKey)
	if rawVal == nil {
		return ContextSession{}
	}

	session, ok := rawVal.(ContextSession)
	if !ok {
		return ContextSession{}
	}

	return session
}

// ActorHTTPMiddleware rejects requests without a valid actor id and puts
// the session on the context for handlers.
func ActorHTTPMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := uuid.Parse(r.Header.Get(ActorIDHeader))
		if err != nil {
			WriteUnauthorized(w, r, fmt.Errorf("missing or invalid %s header", ActorIDHeader))
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, ContextSession{UserID: actorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}
