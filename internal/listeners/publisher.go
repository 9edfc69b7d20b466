package listeners

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/emilythestrangee/wikicomments/backend/internal/signals"
)

const routingKey = "comment.was_posted"

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// CommentEvent is the message body published for every saved comment.
type CommentEvent struct {
	Event       string    `json:"event"`
	CommentID   int       `json:"comment_id"`
	UserID      int       `json:"user_id"`
	ContentType string    `json:"content_type"`
	ObjectPK    string    `json:"object_pk"`
	IsRemoved   bool      `json:"is_removed"`
	At          time.Time `json:"at"`
}

// Publisher fans saved comments out to a topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
	logger   *slog.Logger
	now      func() time.Time
}

func NewPublisher(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, logger: logger, now: time.Now}
}

// DeclareExchange creates the durable topic exchange events are published to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

// WasPosted is a signals.PostSaveFunc. Failures are logged, never returned.
func (p *Publisher) WasPosted(ctx context.Context, ev *signals.Event) {
	body, err := json.Marshal(CommentEvent{
		Event:       "comment_was_posted",
		CommentID:   ev.Comment.ID,
		UserID:      ev.UserID,
		ContentType: ev.Comment.ContentType,
		ObjectPK:    ev.Comment.ObjectPK,
		IsRemoved:   ev.Comment.IsRemoved,
		At:          p.now().UTC(),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "encoding comment event", "comment_id", ev.Comment.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "publishing comment event", "comment_id", ev.Comment.ID, "error", err)
	}
}
