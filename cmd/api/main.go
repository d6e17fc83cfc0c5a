package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shinyyama/support-chat-backend/internal/config"
	"github.com/shinyyama/support-chat-backend/internal/db"
	"github.com/shinyyama/support-chat-backend/internal/model"
	"github.com/shinyyama/support-chat-backend/internal/server"
)

var (
	gitSHA    = "dev"
	buildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if err := conn.AutoMigrate(
		&model.User{},
		&model.Room{},
		&model.Message{},
		&model.ReadState{},
		&model.Notification{},
		&model.NotificationJob{},
	); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	srv := server.New(conn, cfg, gitSHA, buildTime)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	addr := ":" + port

	log.Printf("starting server on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
