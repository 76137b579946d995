package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/mwillfox/authgate/notify"
)

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	EnableTLS     bool
	SkipVerifyTLS bool
}

// SMTPSender delivers one-time codes by email.
type SMTPSender struct {
	cfg    SMTPConfig
	client *gomail.Client
}

// NewSMTPSender validates cfg and dial options up front so
// misconfiguration surfaces at startup rather than on first send.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	if cfg.EnableTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.SkipVerifyTLS {
		opts = append(opts, gomail.WithTLSConfig(&tls.Config{
			InsecureSkipVerify: true,
			ServerName:         cfg.Host,
		}))
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTPSender{cfg: cfg, client: client}, nil
}

// NotifyOTP sends the code to msg.Email.
func (s *SMTPSender) NotifyOTP(ctx context.Context, msg notify.OTPMessage) error {
	m := gomail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.Email); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject("Your verification code")
	m.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Your verification code is: %s\n\nThis code expires in %s and can be used once.\n",
		msg.Code, msg.Validity,
	))

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
