package main

import (
	"log"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/velvetlane/matchroom/internal/config"
	"github.com/velvetlane/matchroom/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) > 1 {
		rootPath := os.Args[1]
		if rootPath == "" {
			log.Fatal("root directory path is empty")
		}

		if err := godotenv.Load(path.Join(rootPath, "config.env")); err != nil {
			log.Fatal(err)
		}
	}

	config, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	server, err := server.NewHTTPServer(config)
	if err != nil {
		log.Fatal(err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		if err := server.Stop(); err != nil {
			log.Fatal(err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal(err)
	}
}
