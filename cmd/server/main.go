package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server"
	"github.com/dmitrijs2005/showroom/internal/server/config"
	"github.com/gin-gonic/gin"
)

func main() {

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		return
	}

	app.Run(ctx)

}
