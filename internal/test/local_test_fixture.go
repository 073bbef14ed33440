package test

import (
	"os"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type LocalTestFixture struct {
	dockerComposePath string
	compose           testcontainers.DockerCompose
}

type WaitStrategy struct {
	Service  string
	Port     int
	Strategy wait.Strategy
}

func NewLocalTestFixture(dockerComposePath string, strategies ...WaitStrategy) (LocalTestFixture, error) {
	compose := testcontainers.NewLocalDockerCompose(
		[]string{dockerComposePath},
		uuid.New().String(),
	)

	withCommand := compose.WithCommand([]string{"up", "-d"})
	for _, s := range strategies {
		withCommand = withCommand.WithExposedService(s.Service, s.Port, s.Strategy)
	}

	f := LocalTestFixture{
		dockerComposePath: dockerComposePath,
		compose:           withCommand,
	}

	return f, nil
}

func (f *LocalTestFixture) Start() error {
	if skip := os.Getenv("SKIP_INFRASTRUCTURE"); skip == "true" {
		return nil
	}

	execErr := f.compose.Invoke()
	return execErr.Error
}

func (f *LocalTestFixture) Stop() error {
	if skip := os.Getenv("SKIP_INFRASTRUCTURE"); skip == "true" {
		return nil
	}

	execErr := f.compose.Down()
	return execErr.Error
}
