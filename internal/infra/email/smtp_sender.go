package email

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers alert emails one address at a time through a gomail
// dialer. Each Send is an independent SMTP transaction so a failure for one
// address cannot poison the rest of a recipient set.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(address, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", address)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", address, err)
	}
	return nil
}
