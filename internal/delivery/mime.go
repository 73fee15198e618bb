package delivery

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

const base64LineLen = 76

// Composer builds raw MIME messages. Boundary and Now may be replaced in tests.
type Composer struct {
	Boundary func() string
	Now      func() time.Time
}

func (c Composer) boundary() string {
	if c.Boundary != nil {
		return c.Boundary()
	}
	return "spotlake-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (c Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Compose renders msg as an RFC 5322 message.
//
// Layout:
//   - no inline images: multipart/alternative (text, html), or a single part when only one body exists
//   - inline images: multipart/related whose first part is the body and whose remaining parts are the images
func (c Composer) Compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", msg.From)
	writeHeader(&buf, "To", strings.Join(msg.To, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", c.now().Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")

	if len(msg.Inline) == 0 {
		if err := c.writeBody(&buf, msg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	related := multipart.NewWriter(&buf)
	if err := related.SetBoundary(c.boundary()); err != nil {
		return nil, fmt.Errorf("failed to set boundary: %w", err)
	}
	writeHeader(&buf, "Content-Type", mime.FormatMediaType("multipart/related", map[string]string{
		"boundary": related.Boundary(),
		"type":     bodyType(msg),
	}))
	buf.WriteString("\r\n")

	var body bytes.Buffer
	if err := c.writeBody(&body, msg); err != nil {
		return nil, err
	}
	headers, content, _ := bytes.Cut(body.Bytes(), []byte("\r\n\r\n"))
	part, err := related.CreatePart(parseHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	part.Write(content)

	for _, img := range msg.Inline {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", img.ContentType)
		h.Set("Content-Transfer-Encoding", "base64")
		h.Set("Content-ID", "<"+img.ContentID+">")
		h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": img.Filename}))
		part, err := related.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create image part: %w", err)
		}
		if err := writeBase64(part, img.Data); err != nil {
			return nil, err
		}
	}

	if err := related.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	return buf.Bytes(), nil
}

func bodyType(msg Message) string {
	if msg.Text != "" && msg.HTML != "" {
		return "multipart/alternative"
	}
	if msg.HTML != "" {
		return "text/html"
	}
	return "text/plain"
}

// writeBody writes the body's own headers, a blank line, then the encoded body.
func (c Composer) writeBody(w *bytes.Buffer, msg Message) error {
	if msg.Text != "" && msg.HTML != "" {
		alt := multipart.NewWriter(w)
		if err := alt.SetBoundary(c.boundary()); err != nil {
			return fmt.Errorf("failed to set boundary: %w", err)
		}
		writeHeader(w, "Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": alt.Boundary()}))
		w.WriteString("\r\n")

		for _, p := range []struct{ ct, body string }{
			{"text/plain; charset=utf-8", msg.Text},
			{"text/html; charset=utf-8", msg.HTML},
		} {
			h := textproto.MIMEHeader{}
			h.Set("Content-Type", p.ct)
			h.Set("Content-Transfer-Encoding", "quoted-printable")
			part, err := alt.CreatePart(h)
			if err != nil {
				return fmt.Errorf("failed to create alternative part: %w", err)
			}
			if err := writeQP(part, p.body); err != nil {
				return err
			}
		}
		return alt.Close()
	}

	ct, body := "text/plain; charset=utf-8", msg.Text
	if msg.HTML != "" {
		ct, body = "text/html; charset=utf-8", msg.HTML
	}
	writeHeader(w, "Content-Type", ct)
	writeHeader(w, "Content-Transfer-Encoding", "quoted-printable")
	w.WriteString("\r\n")
	return writeQP(w, body)
}

func writeHeader(w *bytes.Buffer, key, value string) {
	w.WriteString(key + ": " + value + "\r\n")
}

func parseHeaders(block []byte) textproto.MIMEHeader {
	h := textproto.MIMEHeader{}
	for line := range strings.SplitSeq(string(block), "\r\n") {
		if k, v, ok := strings.Cut(line, ": "); ok {
			h.Set(k, v)
		}
	}
	return h
}

func writeQP(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}
	return qp.Close()
}

func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 0 {
		n := min(base64LineLen, len(enc))
		if _, err := io.WriteString(w, enc[:n]+"\r\n"); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
		enc = enc[n:]
	}
	return nil
}
