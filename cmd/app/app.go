package main

import (
	"os"

	"github.com/DRSN-tech/go-recommender/internal/app"
	config "github.com/DRSN-tech/go-recommender/internal/cfg"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
)

func main() {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "config load failed")
		os.Exit(1)
	}
	log.Infof("starting recommender: index=%s vectorizer=%s dim=%d",
		cfg.Index.Provider, cfg.Vectorizer.Provider, cfg.Vectorizer.Dimension)

	recommender, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "app init failed")
		os.Exit(1)
	}

	if err := recommender.Run(); err != nil {
		os.Exit(1)
	}
}
