package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	gomail "gopkg.in/mail.v2"
)

type SMTPMailer struct {
	dialer    *gomail.Dialer
	fromEmail string
	backoff   time.Duration
}

func NewSMTP(host string, port int, username, password, fromEmail string) *SMTPMailer {
	d := gomail.NewDialer(host, port, username, password)
	d.Timeout = 10 * time.Second
	return &SMTPMailer{
		dialer:    d,
		fromEmail: fromEmail,
		backoff:   time.Second,
	}
}

// Render executes the "subject" and "body" blocks of a template.
func Render(templateFile string, data any) (subject, body string, err error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return "", "", err
	}

	s := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(s, "subject", data); err != nil {
		return "", "", err
	}

	b := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(b, "body", data); err != nil {
		return "", "", err
	}

	return s.String(), b.String(), nil
}

func (m *SMTPMailer) Send(templateFile, name, email string, data any) error {
	subject, body, err := Render(templateFile, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail, FromName)
	msg.SetAddressHeader("To", email, name)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var retryErr error
	for i := 0; i < maxRetires; i++ {
		retryErr = m.dialer.DialAndSend(msg)
		if retryErr == nil {
			return nil
		}
		// exponential backoff
		time.Sleep(m.backoff * time.Duration(1<<i))
	}

	return fmt.Errorf("failed to send email after %d attempts, error: %v", maxRetires, retryErr)
}
