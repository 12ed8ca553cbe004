package obs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type ctxKey string

const RequestIDKey ctxKey = "req_id"

// WithRequestID stores the request id for downstream logging.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Time measures an operation and logs its duration and error.
//
//	defer obs.Time(ctx, "ors.Matrix")(&err)
func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	return func(errp *error) {
		dur := time.Since(start)
		l := zerolog.Ctx(ctx)

		if errp != nil && *errp != nil {
			l.Warn().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Err(*errp).Msg("op failed")
			return
		}
		l.Debug().Str("op", name).Int64("dur_ms", dur.Milliseconds()).Msg("op done")
	}
}
