package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one plain-text email.
type Message struct {
	To      string
	Name    string
	Subject string
	Body    string
}

// Sender delivers a message right away.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

func (s *SendGridSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewV3Mail()
	msg.SetFrom(s.from)
	msg.Subject = m.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(m.Name, m.To))
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/plain", m.Body))

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type SMTPSender struct {
	host     string
	port     string
	user     string
	pass     string
	from     string
	fromName string
}

func NewSMTPSender(host, port, user, pass, from, fromName string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, pass: pass, from: from, fromName: fromName}
}

func (s *SMTPSender) Send(_ context.Context, m Message) error {
	var auth smtp.Auth
	if s.user != "" && s.pass != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	return smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{m.To}, s.compose(m))
}

func (s *SMTPSender) compose(m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", s.fromName, s.from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}

// Fallback tries each sender in turn until one succeeds.
type Fallback []Sender

func (f Fallback) Send(ctx context.Context, m Message) error {
	if len(f) == 0 {
		return errors.New("no email sender configured")
	}
	var errs []error
	for _, s := range f {
		err := s.Send(ctx, m)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
