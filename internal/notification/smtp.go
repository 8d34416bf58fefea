package notification

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// smtpTimeout bounds a whole SMTP session when ctx carries no deadline.
const smtpTimeout = 30 * time.Second

// RecipientResolver maps a notice's recipient hint (a user ID) to an email address.
type RecipientResolver interface {
	RecipientEmail(ctx context.Context, userID string) (string, error)
}

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host             string
	Port             int
	Username         string
	Password         string
	From             string
	DefaultRecipient string
}

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPChannel hands notices to a mail relay. Delivery, retries and bounces are
// the relay's job.
type SMTPChannel struct {
	cfg      SMTPConfig
	resolver RecipientResolver
	sendMail sendMailFunc
}

// NewSMTPChannel constructs a mail channel. resolver may be nil, in which case
// every notice goes to the default recipient.
func NewSMTPChannel(cfg SMTPConfig, resolver RecipientResolver) (*SMTPChannel, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp channel: empty host")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp channel: empty from address")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPChannel{cfg: cfg, resolver: resolver, sendMail: sendMail}, nil
}

func (s *SMTPChannel) Name() string { return "smtp" }

// Send resolves the recipient and submits the message.
func (s *SMTPChannel) Send(ctx context.Context, n Notice) error {
	to := s.recipient(ctx, n.RecipientHint)
	if to == "" {
		return fmt.Errorf("smtp channel: no recipient for machine %s", n.MachineID)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.sendMail(ctx, addr, auth, s.cfg.From, []string{to}, buildMessage(s.cfg.From, to, n)); err != nil {
		return fmt.Errorf("smtp channel: send to %s: %w", to, err)
	}
	return nil
}

// sendMail runs one SMTP session like smtp.SendMail, but the dial and every
// later read or write stop at ctx's deadline or when ctx is cancelled.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpTimeout)
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPChannel) recipient(ctx context.Context, hint string) string {
	if s.resolver != nil && hint != "" {
		if email, err := s.resolver.RecipientEmail(ctx, hint); err == nil && email != "" {
			return email
		}
	}
	return s.cfg.DefaultRecipient
}

func buildMessage(from, to string, n Notice) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(n.Subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(n.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
