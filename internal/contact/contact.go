package contact

import (
	"errors"
	"fmt"
	"net/mail"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"emprenix/internal/config"
)

var (
	ErrInvalidReason  = errors.New("unknown contact reason")
	ErrMissingContact = errors.New("contact info is required")
	ErrMissingMessage = errors.New("message is required")
	ErrNotConfigured  = errors.New("email delivery is not configured")
)

// Reasons lists the options of the contact form, in display order.
var Reasons = []string{
	"Project Inquiry",
	"Employment",
	"Tutoring",
	"General Information",
}

type Form struct {
	Reason      string
	ContactInfo string
	Message     string
}

func (f Form) Validate() error {
	valid := false
	for _, r := range Reasons {
		if f.Reason == r {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %q", ErrInvalidReason, f.Reason)
	}
	if strings.TrimSpace(f.ContactInfo) == "" {
		return ErrMissingContact
	}
	if strings.TrimSpace(f.Message) == "" {
		return ErrMissingMessage
	}
	return nil
}

func (f Form) Subject() string {
	return "Contact Form Submission: " + f.Reason
}

func (f Form) Body() string {
	return fmt.Sprintf("Reason: %s\nContact Info: %s\nMessage: %s", f.Reason, f.ContactInfo, f.Message)
}

// WhatsAppLink returns a wa.me link that opens a chat with the form body
// prefilled.
func WhatsAppLink(number string, f Form) string {
	number = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	text := strings.ReplaceAll(url.QueryEscape(f.Body()), "+", "%20")
	return "https://wa.me/" + number + "?text=" + text
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers contact forms over SMTP with PLAIN auth.
type Mailer struct {
	cfg      config.SMTPConfig
	sendMail sendFunc
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, sendMail: smtp.SendMail}
}

// Configured reports whether credentials and a recipient are set.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.Username != "" && m.cfg.Password != "" && m.recipient() != ""
}

func (m *Mailer) recipient() string {
	if m.cfg.Recipient != "" {
		return m.cfg.Recipient
	}
	return m.cfg.Username
}

// Send validates the form and mails it to the configured recipient.
func (m *Mailer) Send(f Form) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if !m.Configured() {
		return ErrNotConfigured
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	to := m.recipient()
	if err := m.sendMail(addr, auth, m.cfg.Username, []string{to}, BuildMessage(m.cfg.Username, to, f)); err != nil {
		return fmt.Errorf("failed to send contact email: %w", err)
	}
	log.Info().Str("reason", f.Reason).Msg("Sent contact email")
	return nil
}

// BuildMessage renders the RFC 5322 message for f. Contact info goes into
// Reply-To only when it parses as an address.
func BuildMessage(from, to string, f Form) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	if addr, err := mail.ParseAddress(headerSafe(f.ContactInfo)); err == nil {
		sb.WriteString("Reply-To: " + addr.Address + "\r\n")
	}
	sb.WriteString("Subject: " + headerSafe(f.Subject()) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")
	body := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(f.Body())
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func headerSafe(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
