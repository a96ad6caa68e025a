package main

import (
	"log/slog"
	"os"

	"github.com/spacesedan/sentibot/config"
	"github.com/spacesedan/sentibot/internal/logging"
	"github.com/spacesedan/sentibot/internal/transformers"
)

// Fetches the ONNX model into MODEL_DIR so the API container can start offline.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	path, err := transformers.EnsureModel(cfg.Model.Dir, cfg.Model.Name)
	if err != nil {
		slog.Error("[Main] Model download failed",
			slog.String("model", cfg.Model.Name),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("[Main] Model ready", slog.String("path", path))
}
