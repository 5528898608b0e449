package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig holds the configuration for the SMTP email sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender address.
	From     string
	FromName string
	// HeloName is sent in EHLO; defaults to "localhost".
	HeloName string
}

// SMTPSender implements Sender over an authenticated SMTP submission server.
type SMTPSender struct {
	cfg    SMTPConfig
	signer *DKIMSigner
	dialer *net.Dialer
}

// NewSMTPSender creates a new SMTPSender. signer may be nil.
func NewSMTPSender(cfg SMTPConfig, signer *DKIMSigner) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp: from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.HeloName == "" {
		cfg.HeloName = "localhost"
	}
	return &SMTPSender{
		cfg:    cfg,
		signer: signer,
		dialer: &net.Dialer{Timeout: 30 * time.Second},
	}, nil
}

// Send delivers msg through the configured server, upgrading with STARTTLS
// when offered.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	data := buildMIME(formatAddress(s.cfg.FromName, s.cfg.From), msg, time.Now())
	data, err := s.signer.Sign(data, s.cfg.From)
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: dial: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Minute)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("smtp: set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp: new client: %w", err)
	}
	defer client.Close()

	if err := client.Hello(s.cfg.HeloName); err != nil {
		return fmt.Errorf("smtp: helo: %w", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConf := &tls.Config{
			ServerName: s.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConf); err != nil {
			return fmt.Errorf("smtp: starttls: %w", err)
		}
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp: rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data start: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("smtp: data write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: data close: %w", err)
	}

	return client.Quit()
}
