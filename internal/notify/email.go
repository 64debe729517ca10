package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/PaulBabatuyi/wildwelcome-api/internal/config"
)

// Email is a rendered HTML message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SMTPMailer sends mail through an SMTP relay using STARTTLS.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	timeout  time.Duration
}

// NewSMTPMailer returns a mailer for cfg, or nil when no credentials are set.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.FromEmail,
		fromName: "Wild Welcome",
		timeout:  15 * time.Second,
	}
}

// Send delivers e. The whole exchange is bounded by the mailer timeout or
// the ctx deadline, whichever is earlier.
func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return errNoRecipient
	}
	addr := net.JoinHostPort(m.host, fmt.Sprint(m.port))

	dialer := net.Dialer{Timeout: 8 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if err := c.Auth(smtp.PlainAuth("", m.username, m.password, m.host)); err != nil {
		return err
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(e.To); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(m.fromName, m.from, e)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func buildMessage(fromName, from string, e Email) []byte {
	return []byte(strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", mime.QEncoding.Encode("utf-8", fromName), from),
		fmt.Sprintf("To: %s", e.To),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", e.Subject)),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		e.HTML,
	}, "\r\n"))
}

var errNoRecipient = errors.New("no recipient")
