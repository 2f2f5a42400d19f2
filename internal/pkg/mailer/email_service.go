package mailer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gitlab.com/golang-commonmark/markdown"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"cubie-assistant-be/internal/entity"
	"cubie-assistant-be/internal/pkg/logger"
)

// Every outgoing message carries this notice; the assistant composes mail
// from model output and the recipient must know that.
const disclaimerHTML = `
<div style="margin-top: 24px; padding: 12px; background: #fff8e1; border-left: 4px solid #ffc107; font-size: 12px; color: #555;">
	<strong>⚠️ AI-Generated Content</strong><br>
	This email was generated by Cubie Assistant. Please verify all data before making business decisions.
</div>`

const disclaimerText = "\n\n---\n⚠️ This e-mail is auto-generated using AI by Cubie Assistant.\nPlease verify any data or actions before making business decisions."

type IEmailService interface {
	// Send delivers a markdown-bodied email. The outcome is a result string
	// rather than an error: "[OK] ..." on success, "[ERROR] ..." on failure,
	// so callers can hand it straight back to the conversation.
	Send(recipients []string, subject, bodyMarkdown string, attachments []string) string
	// ResolveRecipients maps usernames to addresses; raw addresses pass
	// through untouched.
	ResolveRecipients(usernames []string) []string
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	publicDir   string
	db          *gorm.DB
	md          *markdown.Markdown
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderName, publicDir string, db *gorm.DB, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: username,
		senderName:  senderName,
		publicDir:   publicDir,
		db:          db,
		md:          markdown.New(markdown.XHTMLOutput(true), markdown.Tables(true)),
		logger:      log,
	}
}

func (s *emailService) ResolveRecipients(usernames []string) []string {
	var direct, lookup []string
	for _, name := range usernames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(name, "@") {
			direct = append(direct, name)
		} else {
			lookup = append(lookup, strings.ToLower(name))
		}
	}

	resolved := direct
	if len(lookup) > 0 {
		var profiles []entity.UserProfile
		if err := s.db.Where("LOWER(user_name) IN ?", lookup).Find(&profiles).Error; err != nil {
			s.logger.Error("mailer", "Recipient lookup failed", map[string]interface{}{"error": err.Error()})
		}
		for _, profile := range profiles {
			if profile.EmailId != "" {
				resolved = append(resolved, profile.EmailId)
			}
		}
	}

	// de-dup, case-insensitive, keeping the first spelling seen
	seen := make(map[string]bool)
	var out []string
	for _, addr := range resolved {
		key := strings.ToLower(addr)
		if !seen[key] {
			seen[key] = true
			out = append(out, addr)
		}
	}
	return out
}

func (s *emailService) Send(toUsernames []string, subject, bodyMarkdown string, attachments []string) string {
	recipients := s.ResolveRecipients(toUsernames)
	if len(recipients) == 0 {
		s.logger.Warn("mailer", "No valid recipients", map[string]interface{}{"input": toUsernames})
		return "[ERROR] No valid recipients found. Please provide a valid email address or username."
	}

	if len(attachments) == 0 {
		attachments = inferAttachments(bodyMarkdown)
	}

	htmlBody := s.md.RenderToString([]byte(bodyMarkdown))
	plainBody := bodyMarkdown
	if !strings.Contains(plainBody, "auto-generated using AI") {
		plainBody += disclaimerText
		htmlBody += disclaimerHTML
	}
	if len(attachments) > 0 {
		htmlBody += "<p><i>(See attached zip file for interactive charts)</i></p>"
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plainBody)
	m.AddAlternative("text/html", wrapTemplate(htmlBody, subject))

	var cleanup []string
	defer func() {
		for _, path := range cleanup {
			os.Remove(path)
		}
	}()

	for _, ref := range attachments {
		fsPath := s.localPath(ref)
		if _, err := os.Stat(fsPath); err != nil {
			s.logger.Warn("mailer", "Attachment not found, skipping", map[string]interface{}{"path": fsPath})
			continue
		}

		// HTML charts get zipped: raw .html attachments trip spam filters.
		if strings.HasSuffix(fsPath, ".html") {
			zipPath, err := zipFile(fsPath)
			if err != nil {
				s.logger.Error("mailer", "Failed to zip attachment", map[string]interface{}{"path": fsPath, "error": err.Error()})
				m.Attach(fsPath)
				continue
			}
			cleanup = append(cleanup, zipPath)
			m.Attach(zipPath, gomail.Rename(filepath.Base(ref)+".zip"))
			continue
		}
		m.Attach(fsPath)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("mailer", "SMTP send failed", map[string]interface{}{"recipients": recipients, "error": err.Error()})
		return fmt.Sprintf("[ERROR] Error sending email: %v", err)
	}

	s.logger.Info("mailer", "Email sent", map[string]interface{}{"recipients": recipients, "subject": subject})
	return fmt.Sprintf("[OK] Email sent successfully to %s!", strings.Join(recipients, ", "))
}

var attachmentRefPattern = regexp.MustCompile(`/static/demo/\S+?\.(?:png|html)`)

// inferAttachments recovers chart references mentioned in the body when the
// caller supplied none.
func inferAttachments(body string) []string {
	matches := attachmentRefPattern.FindAllString(body, -1)
	seen := make(map[string]bool)
	var out []string
	for _, ref := range matches {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// localPath maps a public chart reference (/static/...) onto the filesystem.
func (s *emailService) localPath(ref string) string {
	if strings.HasPrefix(ref, "/static/") {
		return filepath.Join(s.publicDir, strings.TrimPrefix(ref, "/static/"))
	}
	return ref
}

func zipFile(path string) (string, error) {
	zipPath := path + ".zip"
	out, err := os.Create(zipPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return "", err
	}
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if _, err := io.Copy(entry, in); err != nil {
		return "", err
	}
	return zipPath, nil
}

func wrapTemplate(contentHTML, subject string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin: 0; font-family: Arial, sans-serif; background: #f4f6f8;">
	<div style="max-width: 640px; margin: 0 auto; background: #ffffff;">
		<div style="background: #004aad; color: #ffffff; padding: 16px 24px;">
			<h2 style="margin: 0;">%s</h2>
		</div>
		<div style="padding: 24px; color: #333;">
			%s
		</div>
		<div style="padding: 12px 24px; background: #f4f6f8; font-size: 11px; color: #888;">
			Sent by Cubie Assistant · TCube360
		</div>
	</div>
</body>
</html>`, subject, contentHTML)
}
