package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/agent"
)

// FallbackResponder attempts a primary responder first and falls back on
// error. Context cancellation is never masked by a fallback attempt.
type FallbackResponder struct {
	primary  Responder
	fallback Responder
	logger   zerolog.Logger
}

func NewFallbackResponder(primary, fallback Responder, logger zerolog.Logger) *FallbackResponder {
	return &FallbackResponder{primary: primary, fallback: fallback, logger: logger}
}

func (r *FallbackResponder) Respond(ctx context.Context, profile *agent.Profile, conv *Conversation) (Reply, error) {
	if r.primary == nil {
		return r.fallback.Respond(ctx, profile, conv)
	}

	reply, err := r.primary.Respond(ctx, profile, conv)
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Reply{}, err
	}
	if r.fallback == nil {
		return Reply{}, err
	}

	r.logger.Warn().Err(err).Str("agent_id", profile.ID).Msg("primary responder failed, using fallback")
	return r.fallback.Respond(ctx, profile, conv)
}
