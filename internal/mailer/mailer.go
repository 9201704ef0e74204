// Package mailer sends acknowledgement and summary emails.
package mailer

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = eris.New("mailer: message has no recipient")

// Message is one outgoing email. HTMLBody is sent as text/html.
type Message struct {
	To         []string
	Subject    string
	HTMLBody   string
	ReplyTo    string
	SenderName string
}

// Mailer delivers messages. A nil error is the only delivery signal.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the configured mailer.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "log":
		return NewLogMailer(logger), nil
	case "", "smtp":
		return NewSMTP(cfg, logger)
	default:
		return nil, eris.Errorf("mailer: unknown backend %q", cfg.Backend)
	}
}

// LogMailer logs messages instead of sending them and keeps them in memory.
type LogMailer struct {
	log *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// NewLogMailer creates a LogMailer. A nil logger uses zap.L().
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.L()
	}
	return &LogMailer{log: logger.Named("mailer")}
}

// Send records msg.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipient
	}
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.Info("mail not sent (log backend)",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTMLBody)),
	)
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
