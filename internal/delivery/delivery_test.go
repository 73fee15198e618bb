package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/desertthunder/spotlake/internal/shared"
)

func testMessage() Message {
	return Message{
		From:    "spotlake@example.com",
		To:      []string{"me@example.com"},
		Subject: "Your top tracks (short term)",
		Text:    "1 (-) Song - Artist",
		HTML:    "<table><tr><td>1 (-)</td><td>Song - Artist</td></tr></table>",
	}
}

func counterComposer() Composer {
	var n int
	return Composer{
		Boundary: func() string { n++; return fmt.Sprintf("b%d", n) },
		Now:      func() time.Time { return time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC) },
	}
}

func TestMessageValidate(t *testing.T) {
	t.Run("valid message", func(t *testing.T) {
		if err := testMessage().Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("no recipient", func(t *testing.T) {
		msg := testMessage()
		msg.To = nil
		if err := msg.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("bad address", func(t *testing.T) {
		msg := testMessage()
		msg.To = []string{"not an address"}
		if err := msg.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		msg := testMessage()
		msg.Text, msg.HTML = "", "  "
		if err := msg.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func readMessage(t *testing.T, raw []byte) (*mail.Message, string, map[string]string) {
	t.Helper()
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse message: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil {
		t.Fatalf("failed to parse content type: %v", err)
	}
	return m, mediaType, params
}

func TestCompose(t *testing.T) {
	t.Run("text and html become alternative parts", func(t *testing.T) {
		raw, err := counterComposer().Compose(testMessage())
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}

		m, mediaType, params := readMessage(t, raw)
		if mediaType != "multipart/alternative" {
			t.Fatalf("expected multipart/alternative, got %s", mediaType)
		}
		if got := m.Header.Get("Date"); got != "Mon, 15 Jan 2024 08:00:00 +0000" {
			t.Errorf("unexpected Date header %q", got)
		}

		r := multipart.NewReader(m.Body, params["boundary"])
		var types, bodies []string
		for {
			p, err := r.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("NextPart failed: %v", err)
			}
			data, _ := io.ReadAll(p)
			types = append(types, p.Header.Get("Content-Type"))
			bodies = append(bodies, string(data))
		}

		if len(types) != 2 {
			t.Fatalf("expected 2 parts, got %d", len(types))
		}
		if !strings.HasPrefix(types[0], "text/plain") || !strings.HasPrefix(types[1], "text/html") {
			t.Errorf("unexpected part order %v", types)
		}
		if bodies[1] != testMessage().HTML {
			t.Errorf("html body mismatch: %q", bodies[1])
		}
	})

	t.Run("single html body", func(t *testing.T) {
		msg := testMessage()
		msg.Text = ""
		raw, err := counterComposer().Compose(msg)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		_, mediaType, _ := readMessage(t, raw)
		if mediaType != "text/html" {
			t.Errorf("expected text/html, got %s", mediaType)
		}
	})

	t.Run("inline images use multipart related", func(t *testing.T) {
		msg := testMessage()
		msg.HTML = `<img src="cid:Thealbum">`
		img := []byte("\x89PNG fake image bytes that are long enough to wrap across more than one base64 line of output")
		msg.Inline = []InlineImage{{ContentID: "Thealbum", Filename: "Thealbum.jpg", ContentType: "image/jpeg", Data: img}}

		raw, err := counterComposer().Compose(msg)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}

		m, mediaType, params := readMessage(t, raw)
		if mediaType != "multipart/related" {
			t.Fatalf("expected multipart/related, got %s", mediaType)
		}
		if params["type"] != "multipart/alternative" {
			t.Errorf("expected related type multipart/alternative, got %q", params["type"])
		}

		r := multipart.NewReader(m.Body, params["boundary"])
		body, err := r.NextPart()
		if err != nil {
			t.Fatalf("failed to read body part: %v", err)
		}
		bodyType, _, _ := mime.ParseMediaType(body.Header.Get("Content-Type"))
		if bodyType != "multipart/alternative" {
			t.Errorf("expected first part multipart/alternative, got %s", bodyType)
		}

		image, err := r.NextPart()
		if err != nil {
			t.Fatalf("failed to read image part: %v", err)
		}
		if got := image.Header.Get("Content-Id"); got != "<Thealbum>" {
			t.Errorf("expected Content-ID <Thealbum>, got %q", got)
		}
		if got := image.Header.Get("Content-Disposition"); !strings.HasPrefix(got, "inline") {
			t.Errorf("expected inline disposition, got %q", got)
		}
		decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, image))
		if err != nil {
			t.Fatalf("failed to decode image: %v", err)
		}
		if !bytes.Equal(decoded, img) {
			t.Error("image bytes did not round trip")
		}

		if _, err := r.NextPart(); err != io.EOF {
			t.Errorf("expected exactly two parts, got %v", err)
		}
	})

	t.Run("non-ascii subject is encoded", func(t *testing.T) {
		msg := testMessage()
		msg.Subject = "Nouveautés"
		raw, err := counterComposer().Compose(msg)
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		if !bytes.Contains(raw, []byte("Subject: =?utf-8?q?")) {
			t.Error("expected Q-encoded subject")
		}
		m, _, _ := readMessage(t, raw)
		decoded, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
		if err != nil || decoded != "Nouveautés" {
			t.Errorf("subject did not decode: %q %v", decoded, err)
		}
	})

	t.Run("default boundary", func(t *testing.T) {
		raw, err := Composer{}.Compose(testMessage())
		if err != nil {
			t.Fatalf("Compose failed: %v", err)
		}
		_, _, params := readMessage(t, raw)
		if !strings.HasPrefix(params["boundary"], "spotlake-") {
			t.Errorf("unexpected boundary %q", params["boundary"])
		}
	})
}

func TestWriterDispatcher(t *testing.T) {
	var buf bytes.Buffer
	d := NewWriterDispatcher(&buf)

	if err := d.Dispatch(context.Background(), testMessage()); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Subject: Your top tracks (short term)") {
		t.Errorf("expected subject in output, got %q", buf.String())
	}

	bad := testMessage()
	bad.To = nil
	if err := d.Dispatch(context.Background(), bad); err == nil {
		t.Error("expected validation error")
	}
}

func TestWebhookDispatcher(t *testing.T) {
	t.Run("publishes json payload", func(t *testing.T) {
		var got WebhookPayload
		var contentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode payload: %v", err)
			}
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		msg := testMessage()
		msg.Inline = []InlineImage{{ContentID: "A", Filename: "A.jpg", ContentType: "image/jpeg", Data: []byte("img")}}

		d := NewWebhookDispatcher(server.URL, server.Client(), nil)
		if err := d.Dispatch(context.Background(), msg); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}

		if contentType != "application/json" {
			t.Errorf("expected application/json, got %q", contentType)
		}
		if got.Subject != msg.Subject || len(got.To) != 1 {
			t.Errorf("unexpected payload %+v", got)
		}
		if len(got.Images) != 1 || got.Images[0].Data != base64.StdEncoding.EncodeToString([]byte("img")) {
			t.Errorf("unexpected images %+v", got.Images)
		}
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer server.Close()

		d := NewWebhookDispatcher(server.URL, server.Client(), nil)
		err := d.Dispatch(context.Background(), testMessage())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

// fakeSMTP accepts one session and records the envelope and DATA payload.
type fakeSMTP struct {
	ln       net.Listener
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     string
	commands []string
	done     chan struct{}
}

func newFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTP) addr() (string, int) {
	tcp := s.ln.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		s.mu.Lock()
		s.commands = append(s.commands, verb)
		s.mu.Unlock()

		switch verb {
		case "EHLO", "HELO":
			tp.PrintfLine("250 fake")
		case "MAIL":
			s.mu.Lock()
			s.from = strings.TrimSuffix(strings.TrimPrefix(line[len("MAIL FROM:"):], "<"), ">")
			s.mu.Unlock()
			tp.PrintfLine("250 ok")
		case "RCPT":
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimSuffix(strings.TrimPrefix(line[len("RCPT TO:"):], "<"), ">"))
			s.mu.Unlock()
			tp.PrintfLine("250 ok")
		case "DATA":
			tp.PrintfLine("354 go ahead")
			data, err := io.ReadAll(tp.DotReader())
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(data)
			s.mu.Unlock()
			tp.PrintfLine("250 queued")
		case "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 unsupported")
		}
	}
}

func TestSMTPDispatcher(t *testing.T) {
	t.Run("delivers over plain smtp", func(t *testing.T) {
		server := newFakeSMTP(t)
		host, port := server.addr()

		d := NewSMTPDispatcher(shared.DeliveryConfig{SMTPHost: host, SMTPPort: port}, nil)
		d.composer = counterComposer()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Dispatch(ctx, testMessage()); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		<-server.done

		server.mu.Lock()
		defer server.mu.Unlock()
		if server.from != "spotlake@example.com" {
			t.Errorf("unexpected MAIL FROM %q", server.from)
		}
		if len(server.rcpts) != 1 || server.rcpts[0] != "me@example.com" {
			t.Errorf("unexpected recipients %v", server.rcpts)
		}
		if !strings.Contains(server.data, "Subject: Your top tracks (short term)") {
			t.Errorf("DATA missing subject: %q", server.data)
		}
		if last := server.commands[len(server.commands)-1]; last != "QUIT" {
			t.Errorf("expected session to end with QUIT, got %s", last)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		d := NewSMTPDispatcher(shared.DeliveryConfig{SMTPHost: "127.0.0.1", SMTPPort: port}, nil)
		err = d.Dispatch(context.Background(), testMessage())
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{kind: "smtp", want: "*delivery.SMTPDispatcher"},
		{kind: "webhook", want: "*delivery.WebhookDispatcher"},
		{kind: "stdout", want: "*delivery.WriterDispatcher"},
		{kind: "", want: "*delivery.WriterDispatcher"},
		{kind: "pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("kind "+strconv.Quote(tt.kind), func(t *testing.T) {
			d, err := New(shared.DeliveryConfig{Kind: tt.kind}, nil, io.Discard, nil)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := fmt.Sprintf("%T", d); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
