package session

import (
	"context"
	"fmt"
	"log/slog"

	waLog "go.mau.fi/whatsmeow/util/log"
)

// slogAdapter routes whatsmeow's printf-style logging into slog.
type slogAdapter struct {
	logger *slog.Logger
	module string
}

// NewLogger returns a whatsmeow logger writing to logger under module.
func NewLogger(logger *slog.Logger, module string) waLog.Logger {
	return &slogAdapter{logger: logger, module: module}
}

func (a *slogAdapter) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.Log(ctx, level, fmt.Sprintf(msg, args...), "module", a.module)
}

func (a *slogAdapter) Debugf(msg string, args ...any) { a.log(slog.LevelDebug, msg, args) }
func (a *slogAdapter) Infof(msg string, args ...any)  { a.log(slog.LevelInfo, msg, args) }
func (a *slogAdapter) Warnf(msg string, args ...any)  { a.log(slog.LevelWarn, msg, args) }
func (a *slogAdapter) Errorf(msg string, args ...any) { a.log(slog.LevelError, msg, args) }

func (a *slogAdapter) Sub(module string) waLog.Logger {
	return &slogAdapter{logger: a.logger, module: a.module + "/" + module}
}
