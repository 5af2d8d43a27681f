// Package mailer defines the outbound email capability the auth flows
// depend on and an SMTP implementation of it. Delivery is synchronous;
// callers decide what a failure means (registration rolls the user back,
// resend just reports the error).
package mailer

import "gopkg.in/gomail.v2"

// Mailer sends a plain-text email. Implementations must return a non-nil
// error when delivery could not be handed off.
type Mailer interface {
	SendEmail(subject, body, from string, to []string) error
}

// SMTPMailer delivers through an SMTP relay using gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(host, port, username, password)}
}

func (m *SMTPMailer) SendEmail(subject, body, from string, to []string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.dialer.DialAndSend(msg)
}
