package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook copies request_id and backend from the event context onto log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		e.Str("request_id", requestID)
	}

	if backend := GetBackend(ctx); backend != "" {
		e.Str("backend", backend)
	}
}
