package main

import (
	"time"

	"github.com/expo25/eventpass/config"
	"github.com/expo25/eventpass/models"
	"github.com/expo25/eventpass/routes"
	"github.com/expo25/eventpass/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.CheckInStep{},
		&models.Feedback{},
		&models.SharedCertificate{},
		&models.Activity{},
	)

	r := routes.SetupRouter(db)

	// Start background cleanup for expired shared certificates (best-effort)
	utils.StartShareCleaner(5 * time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
