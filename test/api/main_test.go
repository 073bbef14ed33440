package main

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"testing"
	"time"

	"github.com/velvetlane/matchroom/internal/config"
	"github.com/velvetlane/matchroom/internal/server"
	"github.com/velvetlane/matchroom/internal/test"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/go-connections/nat"
	"github.com/joho/godotenv"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type IntegrationTestFixture struct {
	client  *http.Client
	baseURL string
}

var fixture = IntegrationTestFixture{}

func TestMain(m *testing.M) {
	rootPath := "../../"

	// config.local.env can point the suite at the real stack. Without it
	// the suite runs against the in-process simulation wiring.
	_ = godotenv.Load(path.Join(rootPath, "config.local.env"))

	if os.Getenv(config.SimulationEnv) == "" {
		if err := os.Setenv(config.SimulationEnv, "true"); err != nil {
			log.Fatal(err)
		}
	}
	if os.Getenv(config.PortEnv) == "" {
		if err := os.Setenv(config.PortEnv, "8191"); err != nil {
			log.Fatal(err)
		}
	}
	if err := os.Setenv(config.RootPathEnv, rootPath); err != nil {
		log.Fatal(err)
	}

	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conf.Logger = zap.NewNop()

	if !conf.Simulation {
		pgPort := nat.Port("5432")
		infra, err := test.NewLocalTestFixture(
			path.Join(rootPath, "docker-compose.yml"),
			test.WaitStrategy{
				Service: "matchroom-postgres",
				Port:    5432,
				Strategy: wait.ForSQL(pgPort, "postgres", func(nat.Port) string {
					return conf.DatabaseURL
				}),
			},
		)
		if err != nil {
			log.Fatal(err)
		}

		if err := infra.Start(); err != nil {
			log.Fatal(err)
		}

		defer func() {
			if err := infra.Stop(); err != nil {
				log.Fatal(err)
			}
		}()
	}

	srv, err := server.NewHTTPServer(conf)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	defer func() {
		if err := srv.Stop(); err != nil {
			log.Fatal(err)
		}
	}()

	if err := initFixture(conf); err != nil {
		log.Fatal(err)
	}

	_ = m.Run()
}

func initFixture(conf config.Config) error {
	fixture.client = &http.Client{}

	u := url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", "localhost", conf.Port),
	}
	fixture.baseURL = u.String()

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 50)
	return backoff.Retry(func() error {
		resp, err := fixture.client.Get(fixture.baseURL + "/matches")
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}, policy)
}
