package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/hollis/taskpilot/pkg/config"
)

// Mailer delivers invitation emails over SMTP. Disabled (no-op) when the
// config carries no host, so development setups work without a mail relay.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

func NewMailer(cfg config.SMTPConfig, logger *slog.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

func (m *Mailer) SendInvitation(toEmail, projectName, role, token string, expiresAt time.Time) error {
	if !m.Enabled() {
		m.logger.Debug("mailer disabled, skipping invitation email", "to", toEmail)
		return nil
	}

	acceptURL := strings.TrimRight(m.cfg.BaseURL, "/") + "/invitations/" + token

	subject := fmt.Sprintf("You have been invited to %s", projectName)
	body := m.buildInvitationBody(projectName, role, acceptURL, expiresAt)

	return m.send([]string{toEmail}, subject, body)
}

func (m *Mailer) buildInvitationBody(projectName, role, acceptURL string, expiresAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>Invitation to join %s</h2>", projectName))
	sb.WriteString(fmt.Sprintf("<p>You have been invited to join the project <b>%s</b> as <b>%s</b>.</p>", projectName, role))
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Accept the invitation</a></p>", acceptURL))
	sb.WriteString(fmt.Sprintf("<p>This invitation expires on %s.</p>", expiresAt.UTC().Format("Jan 2, 2006")))
	sb.WriteString("</body></html>")
	return sb.String()
}

func (m *Mailer) send(recipients []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}
