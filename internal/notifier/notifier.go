// Package notifier consumes account events from the broker. Delivery of the
// recovery link to the user is left to the log sink.
package notifier

import (
	"context"
	"time"

	"github.com/inkpost/apiserver/internal/mq"
	"github.com/rs/zerolog"
)

// Subscriber is the consuming side of the broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Notifier handles recovery events.
type Notifier struct {
	logger zerolog.Logger
	now    func() time.Time
}

func New(logger zerolog.Logger) *Notifier {
	return &Notifier{logger: logger, now: time.Now}
}

// Run consumes recovery events until ctx ends.
func (n *Notifier) Run(ctx context.Context, sub Subscriber) error {
	n.logger.Info().Str("channel", mq.RecoveryChannel).Msg("notifier consuming")
	return sub.Subscribe(ctx, mq.RecoveryChannel, n.HandleRecovery)
}

// HandleRecovery logs the link of a recovery event. Undecodable events are
// dropped; expired ones are skipped.
func (n *Notifier) HandleRecovery(ctx context.Context, msg mq.Message) error {
	event, err := mq.DecodeRecovery(msg)
	if err != nil {
		return mq.Permanent(err)
	}
	if !event.ExpiresAt.IsZero() && n.now().After(event.ExpiresAt) {
		n.logger.Warn().Str("user_id", event.UserID).Time("expires_at", event.ExpiresAt).Msg("skipping expired recovery link")
		return nil
	}
	n.logger.Info().
		Str("user_id", event.UserID).
		Str("email", event.Email).
		Str("link", event.Link).
		Time("expires_at", event.ExpiresAt).
		Msg("password recovery requested")
	return nil
}
