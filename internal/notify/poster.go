package notify

import (
	"context"
	"strconv"

	"github.com/wb-go/wbf/zlog"
)

// LogPoster "displays" notifications by writing them to the log.
type LogPoster struct{}

// Post logs n.
func (LogPoster) Post(ctx context.Context, n Notification) error {
	event := zlog.Logger.Info().
		Int("id", n.ID).
		Str("channel", n.ChannelName).
		Str("title", n.Title).
		Str("body", n.Body).
		Int("preview_bytes", len(n.Preview))
	if n.Action != nil {
		event = event.Str("action", n.Action.Label).Str("uri", n.Action.URI)
	}
	event.Msg("notification posted")

	return nil
}

// producer publishes a JSON message under key.
type producer interface {
	Produce(ctx context.Context, key []byte, v any) error
}

// QueuePoster publishes notifications to a message queue for a client
// to display.
type QueuePoster struct {
	producer producer
}

// NewQueuePoster creates a QueuePoster on top of p.
func NewQueuePoster(p producer) *QueuePoster {
	return &QueuePoster{producer: p}
}

// Post publishes n keyed by its ID, so a newer notification replaces an
// older one with the same ID on compacted topics.
func (q *QueuePoster) Post(ctx context.Context, n Notification) error {
	return q.producer.Produce(ctx, []byte(strconv.Itoa(n.ID)), n)
}
