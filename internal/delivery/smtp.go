package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/shared"
)

// SMTPDispatcher sends composed MIME messages to an SMTP relay.
type SMTPDispatcher struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool
	timeout  time.Duration
	composer Composer
	logger   *log.Logger
}

// NewSMTPDispatcher builds a dispatcher from the delivery config.
func NewSMTPDispatcher(cfg shared.DeliveryConfig, logger *log.Logger) *SMTPDispatcher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SMTPDispatcher{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		useTLS:   cfg.UseTLS,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Dispatch implements [Dispatcher].
func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := d.composer.Compose(msg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := d.send(ctx, msg.From, msg.To, raw); err != nil {
		d.logger.Error("smtp delivery failed", "host", d.host, "error", err)
		return fmt.Errorf("%w: smtp: %w", shared.ErrServiceUnavailable, err)
	}
	d.logger.Info("message sent", "host", d.host, "recipients", len(msg.To), "bytes", len(raw), "duration", time.Since(start))
	return nil
}

func (d *SMTPDispatcher) send(ctx context.Context, from string, to []string, raw []byte) error {
	addr := net.JoinHostPort(d.host, strconv.Itoa(d.port))

	dialer := &net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, d.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if d.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: d.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if d.username != "" && d.password != "" {
		if err := client.Auth(smtp.PlainAuth("", d.username, d.password, d.host)); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}
