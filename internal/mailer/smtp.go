package mailer

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ginjaninja78/donation-ledger/internal/config"
)

// sender is the part of *mail.Client used to deliver messages.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTP sends mail through one SMTP relay, paced by a rate limiter so a large
// batch stays under the relay's sending quota.
type SMTP struct {
	client  sender
	from    string
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewSMTP creates an SMTP mailer. The connection is opened per message.
func NewSMTP(cfg config.MailConfig, logger *zap.Logger) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, eris.Wrap(config.ErrMissingConfig, "mail.host")
	}
	if cfg.From == "" {
		return nil, eris.Wrap(config.ErrMissingConfig, "mail.from")
	}

	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "mailer: create smtp client")
	}

	if logger == nil {
		logger = zap.L()
	}
	return &SMTP{
		client:  client,
		from:    cfg.From,
		limiter: newLimiter(cfg.RatePerMinute),
		log:     logger.Named("mailer"),
	}, nil
}

// newLimiter allows perMinute messages a minute. Zero or less is unlimited.
func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func tlsPolicy(s string) (mail.TLSPolicy, error) {
	switch strings.ToLower(s) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	}
	return mail.NoTLS, eris.Errorf("mailer: unknown tls policy %q", s)
}

// Send waits for the limiter, then delivers msg.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "mailer: wait for send slot")
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return eris.Wrapf(err, "mailer: send to %s", strings.Join(msg.To, ", "))
	}

	s.log.Debug("mail sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func (s *SMTP) build(msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, ErrNoRecipient
	}

	m := mail.NewMsg()
	if msg.SenderName != "" {
		if err := m.FromFormat(msg.SenderName, s.from); err != nil {
			return nil, eris.Wrap(err, "mailer: from")
		}
	} else if err := m.From(s.from); err != nil {
		return nil, eris.Wrap(err, "mailer: from")
	}
	if err := m.To(msg.To...); err != nil {
		return nil, eris.Wrap(err, "mailer: to")
	}
	if msg.ReplyTo != "" {
		if err := m.ReplyTo(msg.ReplyTo); err != nil {
			return nil, eris.Wrap(err, "mailer: reply-to")
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	return m, nil
}
