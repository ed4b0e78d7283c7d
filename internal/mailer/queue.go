package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apibase/user-api/shared/events"
	"github.com/redis/go-redis/v9"
)

// Publisher is the subset of events.Publisher used to enqueue mail.
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// QueueTransport durably enqueues messages on the mail stream. Send returns
// once Redis has accepted the entry; delivery happens in Worker.
type QueueTransport struct {
	publisher Publisher
}

func NewQueueTransport(publisher Publisher) *QueueTransport {
	return &QueueTransport{publisher: publisher}
}

func (t *QueueTransport) Send(ctx context.Context, msg Message) error {
	return t.publisher.Publish(ctx, events.MailStream, events.MailRequested, events.MailRequestedEvent{
		To:      msg.To,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
}

// Worker drains the mail stream into a delivering transport.
type Worker struct {
	transport Transport
	logger    *slog.Logger
}

func NewWorker(transport Transport, logger *slog.Logger) *Worker {
	return &Worker{transport: transport, logger: logger}
}

// Handle delivers one queued message. Errors leave the entry pending.
func (w *Worker) Handle(ctx context.Context, event events.Event) error {
	if event.Type != events.MailRequested {
		w.logger.WarnContext(ctx, "ignoring unexpected event on mail stream", "type", event.Type)
		return nil
	}

	var data events.MailRequestedEvent
	if err := event.Decode(&data); err != nil {
		return err
	}
	if data.To == "" {
		return fmt.Errorf("queued mail has no recipient")
	}

	if err := w.transport.Send(ctx, Message{To: data.To, Subject: data.Subject, Body: data.Body}); err != nil {
		return fmt.Errorf("failed to deliver queued mail to %s: %w", data.To, err)
	}
	w.logger.InfoContext(ctx, "queued mail delivered", "to", data.To, "subject", data.Subject)
	return nil
}

// Run consumes the mail stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, client *redis.Client, consumer string) error {
	sub := events.NewSubscriber(client, events.SubscriberConfig{
		Group:    "mail-workers",
		Consumer: consumer,
		Stream:   events.MailStream,
		Handler:  w.Handle,
		Logger:   w.logger,
	})
	return sub.Start(ctx)
}
