package mail

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"time"
)

// Message — письмо с текстовой и HTML-версией.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	switch {
	case m.From == "":
		return errors.New("mail: sender is empty")
	case m.To == "":
		return errors.New("mail: recipient is empty")
	case m.Text == "" && m.HTML == "":
		return errors.New("mail: message has no body")
	}
	return nil
}

// BuildMIME собирает сырое письмо multipart/alternative: сначала text/plain, потом text/html.
// Обе части в quoted-printable, чтобы не-ASCII символы (×, имена) доходили без искажений.
func BuildMIME(msg Message) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if msg.Text != "" {
		if err := writePart(mw, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}
	if msg.HTML != "" {
		if err := writePart(mw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mail: failed to close multipart writer: %w", err)
	}

	var out bytes.Buffer
	header := []struct{ key, value string }{
		{"From", msg.From},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", time.Now().UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": mw.Boundary()})},
	}
	for _, h := range header {
		fmt.Fprintf(&out, "%s: %s\r\n", h.key, h.value)
	}
	out.WriteString("\r\n")
	out.Write(body.Bytes())

	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType+`; charset="utf-8"`)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("mail: failed to create %s part: %w", contentType, err)
	}
	qp := quotedprintable.NewWriter(pw)
	if _, err := qp.Write([]byte(content)); err != nil {
		return fmt.Errorf("mail: failed to encode %s part: %w", contentType, err)
	}
	return qp.Close()
}
