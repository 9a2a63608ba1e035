package monitor

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrorKind labels persisted error log rows.
type ErrorKind string

const (
	ErrorDownload ErrorKind = "download"
	ErrorDelivery ErrorKind = "delivery"
	ErrorSystem   ErrorKind = "system"
)

// ErrorLog persists failures for later inspection. Writes are best effort:
// a logging failure must never take down the pipeline, so errors here are
// logged and swallowed.
type ErrorLog struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

func NewErrorLog(pool *pgxpool.Pool, logger *slog.Logger) *ErrorLog {
	return &ErrorLog{Pool: pool, Logger: logger}
}

// LogError records an error with optional source URL and technical detail.
func (e *ErrorLog) LogError(ctx context.Context, kind ErrorKind, message, url, detail string) {
	if len(detail) > 2000 {
		detail = detail[:2000]
	}
	_, err := e.Pool.Exec(ctx, `
		INSERT INTO error_log (error_type, error_message, page_url, detail)
		VALUES ($1, $2, $3, $4)`,
		string(kind), message, url, detail)
	if err != nil {
		e.Logger.Error("failed to persist error log entry",
			"kind", kind, "message", message, "err", err)
	}
}
