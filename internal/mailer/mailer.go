// Package mailer renders account notifications and hands them to a Transport.
//
// Transports: SendGridTransport delivers over the SendGrid v3 API,
// LogTransport only logs, Outbox captures messages in memory and
// QueueTransport appends them to a Redis stream drained by Worker.
package mailer

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"text/template"

	"github.com/apibase/user-api/shared/models"
	"github.com/samber/oops"
)

const (
	ConfirmationSubject = "Confirm your email address"
	ConfirmationAsk     = "Please confirm your email address by following the link below."
	ResetSubject        = "Your password has been reset"
)

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`Hello {{.Email}},

` + ConfirmationAsk + `

{{.URL}}

If you did not sign up, you can ignore this email.
`))

	resetTmpl = template.Must(template.New("reset").Parse(`Hello {{.Email}},

The password for your account was just changed.
If this was not you, contact support immediately.
`))
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders the account mails. It is safe for concurrent use.
type Notifier struct {
	transport Transport
	publicURL string
}

func NewNotifier(transport Transport, publicURL string) *Notifier {
	return &Notifier{transport: transport, publicURL: strings.TrimRight(publicURL, "/")}
}

// ConfirmationURL is the link embedded in the confirmation mail.
func (n *Notifier) ConfirmationURL(token string) string {
	return n.publicURL + "/users/confirm/" + token
}

func (n *Notifier) SendConfirmation(ctx context.Context, user *models.User) error {
	body, err := render(confirmationTmpl, map[string]string{
		"Email": user.Email,
		"URL":   n.ConfirmationURL(user.ConfirmationToken),
	})
	if err != nil {
		return err
	}
	return n.send(ctx, Message{To: user.Email, Subject: ConfirmationSubject, Body: body})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, user *models.User) error {
	body, err := render(resetTmpl, map[string]string{"Email": user.Email})
	if err != nil {
		return err
	}
	return n.send(ctx, Message{To: user.Email, Subject: ResetSubject, Body: body})
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	if err := n.transport.Send(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("subject", msg.Subject).Wrap(err)
	}
	return nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", oops.Code("MAIL_RENDER_FAILED").With("template", t.Name()).Wrap(err)
	}
	return buf.String(), nil
}

// Outbox keeps every sent message in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Deliveries returns a copy of the captured messages.
func (o *Outbox) Deliveries() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Last returns the most recent message, if any.
func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}

func (o *Outbox) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
}

// LogTransport writes messages to the logger instead of delivering them.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "mail not delivered (log transport)",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
