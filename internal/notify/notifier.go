package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notifier sends batches one at a time, at most one per pace interval.
type Notifier struct {
	sender  Sender
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewNotifier(sender Sender, pace time.Duration, log zerolog.Logger) *Notifier {
	limit := rate.Inf
	if pace > 0 {
		limit = rate.Every(pace)
	}
	return &Notifier{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

// Deliver sends batches in order and calls onSent after each success. It
// stops at the first failure and returns how many were sent.
func (n *Notifier) Deliver(ctx context.Context, batches []Batch, onSent func(Batch)) (int, error) {
	sent := 0
	for i, b := range batches {
		if err := n.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		if err := n.sender.Send(ctx, b); err != nil {
			n.log.Error().
				Err(err).
				Int("batch", i+1).
				Int("of", len(batches)).
				Msg("send failed, aborting remaining messages")
			return sent, err
		}
		sent++
		if onSent != nil {
			onSent(b)
		}
		n.log.Debug().
			Int("batch", i+1).
			Int("of", len(batches)).
			Int("ids", len(b.IDs)).
			Msg("message sent")
	}
	return sent, nil
}
