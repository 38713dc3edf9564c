package api

import (
	"net/http"

	"github.com/juank/cpa-dashboard/backend/internal/config"
	"github.com/juank/cpa-dashboard/backend/internal/db"
	"github.com/juank/cpa-dashboard/backend/internal/processor"
	"go.uber.org/zap"
)

// Server serves the dashboard API.
type Server struct {
	DB             db.Database
	Engine         *processor.Engine
	Logger         *zap.Logger
	AllowedOrigin  string
	MaxUploadBytes int64
}

func NewServer(cfg config.ServerConfig, database db.Database, engine *processor.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUpload := cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 10
	}
	return &Server{
		DB:             database,
		Engine:         engine,
		Logger:         logger,
		AllowedOrigin:  cfg.AllowedOrigin,
		MaxUploadBytes: maxUpload << 20,
	}
}

// Handler returns the routed API wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/process", s.handleProcess)
	mux.HandleFunc("/api/combine", s.handleCombine)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/save", s.handleSave)
	mux.HandleFunc("/api/clients", s.handleClients)
	mux.HandleFunc("GET /api/clients/{id}", s.handleClient)
	mux.HandleFunc("/api/uploads", s.handleUploads)

	return LoggingMiddleware(s.Logger, CORSMiddleware(s.AllowedOrigin, mux))
}
