package main

import (
	"net/http"

	"github.com/RichardoC/agent-platform/internal/api"
	"github.com/RichardoC/agent-platform/internal/chat"
	"github.com/RichardoC/agent-platform/internal/config"
	"github.com/RichardoC/agent-platform/internal/db"
	"github.com/RichardoC/agent-platform/internal/llm"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	client := llm.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel,
		cfg.LLMTimeout, cfg.LLMMaxRetries, logger)

	chatService := chat.NewService(database, client, cfg.LLMModel, logger)

	handler := api.NewHandler(database, chatService, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	// Serve the frontend next to the API.
	mux.Handle("/", http.FileServer(http.Dir(cfg.WebDir)))

	logger.Info("starting server",
		zap.String("addr", cfg.Addr),
		zap.String("model", cfg.LLMModel))
	if err := http.ListenAndServe(cfg.Addr, api.RequestLogger(logger, api.CORS(mux))); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
