// Package notify sends admin email notices over SMTP: admission failures
// and pairing QR codes. Delivery failures are the caller's to log; nothing
// here is fatal to the session.
package notify

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/groupscribe/groupscribe/internal/config"
)

// ErrNotConfigured is returned when SMTP settings are absent.
var ErrNotConfigured = errors.New("smtp not configured")

// Notifier is the outbound email surface handlers depend on.
type Notifier interface {
	Send(to, subject, body string) error
	SendAttachment(to, subject, body, filename string, data []byte) error
}

// Mailer sends plain-text notices through an SMTP relay with STARTTLS.
type Mailer struct {
	host     string
	port     int
	from     string
	password string
}

// NewMailer builds a Mailer from config.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     cfg.Email,
		password: cfg.Password,
	}
}

// Send delivers a plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	if m.host == "" || m.from == "" {
		return ErrNotConfigured
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return m.send(to, []byte(b.String()))
}

// SendAttachment delivers a message with one binary attachment, used for
// pairing QR images.
func (m *Mailer) SendAttachment(to, subject, body, filename string, data []byte) error {
	if m.host == "" || m.from == "" {
		return ErrNotConfigured
	}
	const boundary = "groupscribe-attachment"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: application/octet-stream\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", filename)

	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	return m.send(to, []byte(b.String()))
}

func (m *Mailer) send(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.from, m.password, m.host)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
