package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// New builds the intake HTTP server. Server-level errors (TLS handshakes,
// malformed requests) go to logger at error level.
func New(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Document linking may retry for a few seconds before answering.
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  90 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}
