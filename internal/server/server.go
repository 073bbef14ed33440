package server

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/velvetlane/matchroom/internal/config"
	"github.com/velvetlane/matchroom/internal/modules/core"
	"github.com/velvetlane/matchroom/internal/modules/idempotency"
	"github.com/velvetlane/matchroom/internal/modules/match"
	matchcommands "github.com/velvetlane/matchroom/internal/modules/match/commands"
	matchdomain "github.com/velvetlane/matchroom/internal/modules/match/domain"
	"github.com/velvetlane/matchroom/internal/modules/match/memory"
	matchqueries "github.com/velvetlane/matchroom/internal/modules/match/queries"
	"github.com/velvetlane/matchroom/internal/modules/match/scheduler"
	"github.com/velvetlane/matchroom/internal/modules/room"

	"github.com/eskrenkovic/mediator-go"
	"github.com/eskrenkovic/migrate-go"
	"github.com/go-chi/chi"
	_ "github.com/lib/pq"
)

type Server interface {
	Start() error
	Stop() error
}

var _ Server = &HTTPServer{}

// HTTPServer is the composition root: it wires the store, the room gateway,
// the mediator pipeline and the background scheduler behind one HTTP surface.
type HTTPServer struct {
	server    *http.Server
	db        *sql.DB
	scheduler *scheduler.Scheduler
	guard     *idempotency.Guard
}

func NewHTTPServer(config config.Config) (Server, error) {
	baseCtx := context.Background()

	var (
		db    *sql.DB
		store matchdomain.MatchStore
		rooms room.Gateway
	)

	if config.Simulation {
		store = memory.NewStore()
		rooms = room.NewRecorder()
	} else {
		var err error
		db, err = sql.Open("postgres", config.DatabaseURL)
		if err != nil {
			return nil, err
		}

		if err := migrate.Run(baseCtx, db, config.MigrationsPath); err != nil {
			return nil, err
		}

		store = match.NewRepository(db)
		rooms = room.NewHTTPGateway(config.RoomGateway.BaseURL, config.RoomGateway.Token)
	}

	guard := idempotency.NewGuard(config.Engine.DedupWindow)

	requestLoggingBehavior := core.RequestLoggingBehavior{Logger: config.Logger}
	handlerErrorLoggingBehavior := core.HandlerErrorLoggingBehavior{Logger: config.Logger}
	requestValidationBehavior := core.RequestValidationBehavior{}
	idempotencyBehavior := idempotency.Behavior{Guard: guard}

	mediator.RegisterPipelineBehavior(&requestLoggingBehavior)
	mediator.RegisterPipelineBehavior(&handlerErrorLoggingBehavior)
	mediator.RegisterPipelineBehavior(&requestValidationBehavior)
	mediator.RegisterPipelineBehavior(&idempotencyBehavior)

	// handler registration

	createMatchHandler := matchcommands.NewCreateMatchCommandHandler(store, rooms, config.Engine.DefaultTTL)
	err := mediator.RegisterRequestHandler[matchcommands.CreateMatchCommand, matchcommands.CreateMatchResponse](
		createMatchHandler,
	)
	if err != nil {
		return nil, err
	}

	closeMatchHandler := matchcommands.NewCloseMatchCommandHandler(store, rooms)
	err = mediator.RegisterRequestHandler[matchcommands.CloseMatchCommand, core.Unit](
		closeMatchHandler,
	)
	if err != nil {
		return nil, err
	}

	leaveMatchHandler := matchcommands.NewLeaveMatchCommandHandler(store, rooms)
	err = mediator.RegisterRequestHandler[matchcommands.LeaveMatchCommand, core.Unit](
		leaveMatchHandler,
	)
	if err != nil {
		return nil, err
	}

	restoreMatchHandler := matchcommands.NewRestoreMatchCommandHandler(store, rooms, config.Engine.DefaultTTL)
	err = mediator.RegisterRequestHandler[matchcommands.RestoreMatchCommand, matchcommands.RestoreMatchResponse](
		restoreMatchHandler,
	)
	if err != nil {
		return nil, err
	}

	createInviteHandler := matchcommands.NewCreateInviteCommandHandler(store)
	err = mediator.RegisterRequestHandler[matchcommands.CreateInviteCommand, matchcommands.CreateInviteResponse](
		createInviteHandler,
	)
	if err != nil {
		return nil, err
	}

	acceptInviteHandler := matchcommands.NewAcceptInviteCommandHandler(store, rooms)
	err = mediator.RegisterRequestHandler[matchcommands.AcceptInviteCommand, core.Unit](
		acceptInviteHandler,
	)
	if err != nil {
		return nil, err
	}

	rejectInviteHandler := matchcommands.NewRejectInviteCommandHandler(store)
	err = mediator.RegisterRequestHandler[matchcommands.RejectInviteCommand, core.Unit](
		rejectInviteHandler,
	)
	if err != nil {
		return nil, err
	}

	getMembersHandler := matchqueries.NewGetMembersQueryHandler(store)
	err = mediator.RegisterRequestHandler[matchqueries.GetMembersQuery, []matchqueries.MemberModel](
		getMembersHandler,
	)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(
		store,
		rooms,
		config.Logger,
		config.Engine.TickInterval,
		config.Engine.AlertLookahead,
	)

	r := router{
		mux: chi.NewRouter(),
		middleware: []httpMiddleware{
			baseContextMiddleware(baseCtx),
			core.CorrelationIDHTTPMiddleware,
			core.ActorHTTPMiddleware,
		},
	}

	// http

	r.register(http.MethodPost, "/matches", matchcommands.HandleCreateMatch)
	r.register(http.MethodGet, "/matches/{id}/members", matchqueries.HandleGetMembers)

	r.register(http.MethodPut, "/matches/{id}/actions/close", matchcommands.HandleCloseMatch)
	r.register(http.MethodPut, "/matches/{id}/actions/leave", matchcommands.HandleLeaveMatch)
	r.register(http.MethodPut, "/matches/{id}/actions/restore", matchcommands.HandleRestoreMatch)

	r.register(http.MethodPost, "/matches/{id}/invites", matchcommands.HandleCreateInvite)
	r.register(http.MethodPut, "/matches/{id}/invites/actions/accept", matchcommands.HandleAcceptInvite)
	r.register(http.MethodPut, "/matches/{id}/invites/actions/reject", matchcommands.HandleRejectInvite)

	server := http.Server{
		Addr:    net.JoinHostPort("", strconv.Itoa(config.Port)),
		Handler: r.mux,
	}

	return &HTTPServer{
		server:    &server,
		db:        db,
		scheduler: sched,
		guard:     guard,
	}, nil
}

func (s *HTTPServer) Start() error {
	s.guard.StartJanitor()
	s.scheduler.Start()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *HTTPServer) Stop() error {
	s.scheduler.Stop()
	s.guard.Stop()

	if s.db != nil {
		defer func() {
			_ = s.db.Close()
		}()
	}

	return s.server.Close()
}

type httpMiddleware func(http.HandlerFunc) http.HandlerFunc

type router struct {
	mux        chi.Router
	middleware []httpMiddleware
}

func (r *router) register(method, pattern string, handler http.HandlerFunc) {
	h := handler

	for i := len(r.middleware) - 1; i >= 0; i-- {
		h = r.middleware[i](h)
	}

	r.mux.Method(method, pattern, h)
}

func baseContextMiddleware(baseCtx context.Context) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			baseCtx := baseCtx

			if v, ok := ctx.Value(http.ServerContextKey).(*http.Server); ok {
				baseCtx = context.WithValue(baseCtx, http.ServerContextKey, v)
			}

			if v, ok := ctx.Value(http.LocalAddrContextKey).(net.Addr); ok {
				baseCtx = context.WithValue(baseCtx, http.LocalAddrContextKey, v)
			}

			if v := ctx.Value(chi.RouteCtxKey); v != nil {
				baseCtx = context.WithValue(baseCtx, chi.RouteCtxKey, v)
			}

			next.ServeHTTP(w, r.WithContext(baseCtx))
		}
	}
}
