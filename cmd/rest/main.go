package main

import (
	"context"
	"log"

	"cubie-assistant-be/internal/bootstrap"
	"cubie-assistant-be/internal/config"
	"cubie-assistant-be/internal/server"
	"cubie-assistant-be/internal/tracer"
	"cubie-assistant-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
