// Package delivery hands rendered recap and release radar messages to a transport.
//
// Implementations:
//   - [SMTPDispatcher] : raw MIME over SMTP, with inline images as multipart/related parts
//   - [WebhookDispatcher] : structured JSON publish to an HTTP endpoint
//   - [WriterDispatcher] : writes the MIME message to an [io.Writer] (dry runs, stdout)
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/spotlake/internal/shared"
)

// InlineImage is an image part referenced from the HTML body as cid:ContentID.
type InlineImage struct {
	ContentID   string
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a rendered notification.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
	Inline  []InlineImage
}

// Validate checks addresses and that there is a body to send.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: message has no recipient", shared.ErrInvalidInput)
	}
	for _, addr := range append([]string{m.From}, m.To...) {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: address %q: %v", shared.ErrInvalidInput, addr, err)
		}
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("%w: message has no body", shared.ErrInvalidInput)
	}
	return nil
}

// Dispatcher sends a [Message].
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// New builds the dispatcher selected by cfg.Kind. out is used by the stdout kind and defaults to [os.Stdout].
func New(cfg shared.DeliveryConfig, httpClient *http.Client, out io.Writer, logger *log.Logger) (Dispatcher, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "delivery", "kind", cfg.Kind)

	switch cfg.Kind {
	case "smtp":
		return NewSMTPDispatcher(cfg, logger), nil
	case "webhook":
		return NewWebhookDispatcher(cfg.WebhookURL, httpClient, logger), nil
	case "stdout", "":
		if out == nil {
			out = os.Stdout
		}
		return NewWriterDispatcher(out), nil
	default:
		return nil, fmt.Errorf("%w: unknown delivery kind %q", shared.ErrInvalidConfig, cfg.Kind)
	}
}
