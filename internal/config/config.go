package config

import (
	"net/url"
	"path"
	"time"

	"github.com/velvetlane/matchroom/internal/modules/env"

	"go.uber.org/zap"
)

const (
	PortEnv        = "PORT"
	DatabaseUrlEnv = "DATABASE_URL"
	RootPathEnv    = "ROOT_PATH"
	SimulationEnv  = "SIMULATION"

	RoomGatewayURLEnv   = "ROOM_GATEWAY_URL"
	RoomGatewayTokenEnv = "ROOM_GATEWAY_TOKEN"

	MatchDefaultTTLEnv     = "MATCH_DEFAULT_TTL"
	MatchTickIntervalEnv   = "MATCH_TICK_INTERVAL"
	MatchAlertLookaheadEnv = "MATCH_ALERT_LOOKAHEAD"
	MatchDedupWindowEnv    = "MATCH_DEDUP_WINDOW"
)

type RoomGatewayConfiguration struct {
	BaseURL *url.URL
	Token   string
}

type EngineConfiguration struct {
	DefaultTTL     time.Duration
	TickInterval   time.Duration
	AlertLookahead time.Duration
	DedupWindow    time.Duration
}

type Config struct {
	Logger *zap.Logger

	Port           int
	DatabaseURL    string
	MigrationsPath string

	// Simulation runs the engine against in-process store and gateway fakes,
	// for local development without Postgres or a messaging platform.
	Simulation bool

	RoomGateway RoomGatewayConfiguration
	Engine      EngineConfiguration
}

func Load() (Config, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return Config{}, err
	}
	zap.ReplaceGlobals(logger)

	port := env.MustGetInt(PortEnv)
	simulation := env.GetBoolOrDefault(SimulationEnv, false)

	var (
		dbURL          string
		migrationsPath string
		gateway        RoomGatewayConfiguration
	)
	if !simulation {
		dbURL = env.MustGetString(DatabaseUrlEnv)
		rootPath := env.MustGetString(RootPathEnv)
		migrationsPath = path.Join(rootPath, "db", "migrations")

		gateway = RoomGatewayConfiguration{
			BaseURL: env.MustGetURL(RoomGatewayURLEnv),
			Token:   env.GetStringOrDefault(RoomGatewayTokenEnv, ""),
		}
	}

	engine := EngineConfiguration{
		DefaultTTL:     env.GetDurationOrDefault(MatchDefaultTTLEnv, 24*time.Hour),
		TickInterval:   env.GetDurationOrDefault(MatchTickIntervalEnv, time.Minute),
		AlertLookahead: env.GetDurationOrDefault(MatchAlertLookaheadEnv, 5*time.Hour),
		DedupWindow:    env.GetDurationOrDefault(MatchDedupWindowEnv, 2*time.Minute),
	}

	return Config{
		Logger:         logger,
		Port:           port,
		DatabaseURL:    dbURL,
		MigrationsPath: migrationsPath,
		Simulation:     simulation,
		RoomGateway:    gateway,
		Engine:         engine,
	}, nil
}
