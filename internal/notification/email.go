package notification

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"tableflow/internal/config"
)

// Mailer is the part of gomail.Dialer the email sender uses.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	mailer    Mailer
	from      string
	directory Directory
}

func NewEmailSender(cfg config.SMTPConfig, directory Directory) *EmailSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &EmailSender{mailer: d, from: from, directory: directory}
}

func NewEmailSenderWithMailer(mailer Mailer, from string, directory Directory) *EmailSender {
	return &EmailSender{mailer: mailer, from: from, directory: directory}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	to := make([]string, 0)
	for _, addr := range s.directory.Resolve(msg.Recipients) {
		if strings.Contains(addr, "@") {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return fmt.Errorf("no email address for recipients %v", msg.Recipients)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject(msg))
	m.SetBody("text/plain", msg.Message)

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func subject(msg Message) string {
	if table, ok := msg.Data["table_number"]; ok {
		return fmt.Sprintf("Table %v alert", table)
	}
	return "Table alert"
}
