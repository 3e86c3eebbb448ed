package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"ticketwatch/internal/apperr"
	"ticketwatch/internal/entry"
)

const emailSignature = "- 나눔티켓 모니터링 봇"

type EmailOptions struct {
	SMTPServer     string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	ReceiverEmail  string
	Timeout        time.Duration
}

func (o EmailOptions) configured() bool {
	return strings.TrimSpace(o.SenderEmail) != "" &&
		strings.TrimSpace(o.SenderPassword) != "" &&
		strings.TrimSpace(o.ReceiverEmail) != ""
}

// Email sends a plain-text message over SMTP with mandatory STARTTLS.
type Email struct {
	opt EmailOptions
}

func NewEmail(opt EmailOptions) *Email {
	if opt.SMTPServer == "" {
		opt.SMTPServer = "smtp.gmail.com"
	}
	if opt.SMTPPort == 0 {
		opt.SMTPPort = 587
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 15 * time.Second
	}
	return &Email{opt: opt}
}

func (m *Email) Name() string { return "email" }
func (m *Email) Ready() bool  { return m.opt.configured() }

func (m *Email) Deliver(ctx context.Context, e entry.Entry) error {
	if !m.opt.configured() {
		return ErrSkipped
	}
	msg, err := m.message(e)
	if err != nil {
		return apperr.Transport("email: compose", err)
	}
	client, err := mail.NewClient(m.opt.SMTPServer,
		mail.WithPort(m.opt.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.opt.SenderEmail),
		mail.WithPassword(m.opt.SenderPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(m.opt.Timeout),
	)
	if err != nil {
		return apperr.Transport("email: client", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return apperr.Transport("email", err)
	}
	return nil
}

func (m *Email) message(e entry.Entry) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(strings.TrimSpace(m.opt.SenderEmail)); err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	if err := msg.To(strings.TrimSpace(m.opt.ReceiverEmail)); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	msg.Subject(emailSubject(e))
	msg.SetBodyString(mail.TypeTextPlain, emailBody(e))
	return msg, nil
}

// emailSubject is always a single line, whatever the title holds.
func emailSubject(e entry.Entry) string {
	return ticketEmoji + " 새로운 나눔티켓: " + singleLine(e.Title)
}

func emailBody(e entry.Entry) string {
	var b strings.Builder
	b.WriteString("새로운 나눔티켓이 등록되었습니다!\n\n")
	fmt.Fprintf(&b, "%s: %s\n", labelTitle, e.Title)
	for _, f := range optionalFields(e) {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	fmt.Fprintf(&b, "\n자세한 정보: %s\n\n%s\n", e.Link, emailSignature)
	return b.String()
}
