package logger

import (
	"fmt"
	"log/slog"

	"github.com/thushan/ferry/theme"
)

// StyledLogger wraps slog with theme-aware formatting helpers.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	InfoWithCount(msg string, count int, args ...any)
	InfoWithEndpoint(msg string, endpoint string, args ...any)
	WarnWithEndpoint(msg string, endpoint string, args ...any)
	InfoWithLambda(msg string, lambda string, args ...any)
	Logger() *slog.Logger
}

type styledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger creates a styled logger with the given theme.
func NewStyledLogger(logger *slog.Logger, appTheme *theme.Theme) StyledLogger {
	return &styledLogger{logger: logger, theme: appTheme}
}

func (sl *styledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *styledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *styledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *styledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *styledLogger) InfoWithCount(msg string, count int, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Counts.Render(fmt.Sprintf("(%d)", count)))
	sl.logger.Info(styled, args...)
}

func (sl *styledLogger) InfoWithEndpoint(msg string, endpoint string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Endpoint.Render(endpoint))
	sl.logger.Info(styled, args...)
}

func (sl *styledLogger) WarnWithEndpoint(msg string, endpoint string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Endpoint.Render(endpoint))
	sl.logger.Warn(styled, args...)
}

func (sl *styledLogger) InfoWithLambda(msg string, lambda string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, sl.theme.Lambda.Render(lambda))
	sl.logger.Info(styled, args...)
}

func (sl *styledLogger) Logger() *slog.Logger {
	return sl.logger
}
