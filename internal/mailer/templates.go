package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

const (
	TagVerification  = "verification"
	TagPasswordReset = "password-reset"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	verifyTemplate = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/verify_email.html"))
	resetTemplate  = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/reset_password.html"))
)

type linkData struct {
	Name      string
	Link      string
	ExpiresIn string
}

// VerificationEmail renders the message carrying the email verification link.
func VerificationEmail(to, name, link string, ttl time.Duration) (Message, error) {
	return render(verifyTemplate, to, "Verify your email", TagVerification, linkData{
		Name:      name,
		Link:      link,
		ExpiresIn: humanDuration(ttl),
	}, fmt.Sprintf("Hello %s,\n\nVerify your email address: %s\n\nThe link expires in %s.\n", name, link, humanDuration(ttl)))
}

// PasswordResetEmail renders the message carrying the password reset link.
func PasswordResetEmail(to, name, link string, ttl time.Duration) (Message, error) {
	return render(resetTemplate, to, "Reset your password", TagPasswordReset, linkData{
		Name:      name,
		Link:      link,
		ExpiresIn: humanDuration(ttl),
	}, fmt.Sprintf("Hello %s,\n\nReset your password: %s\n\nThe link expires in %s.\n", name, link, humanDuration(ttl)))
}

func render(tmpl *template.Template, to, subject, tag string, data linkData, text string) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", tag, err)
	}
	return Message{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    text,
		Tag:     tag,
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	case d >= time.Hour && d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	default:
		minutes := int(d.Round(time.Minute) / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
}
