package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"hostel-hub.backend/pkg/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	KindVerification = "verification"
	KindWelcome      = "welcome"

	verifyPath = "/api/v1/auth/verify-email/"
)

// Notifier renders account emails and hands them to a Sender.
type Notifier struct {
	sender    Sender
	publicURL string
	appName   string
	ttl       time.Duration
}

// NewNotifier creates a notifier. publicURL is the externally reachable base of
// the API, ttl is the verification token lifetime quoted in the email.
func NewNotifier(sender Sender, publicURL, appName string, ttl time.Duration) *Notifier {
	if appName == "" {
		appName = "Hostel Hub"
	}
	return &Notifier{sender: sender, publicURL: publicURL, appName: appName, ttl: ttl}
}

// VerificationLink is the URL a user clicks to consume token.
func (n *Notifier) VerificationLink(token string) string {
	return n.publicURL + verifyPath + url.PathEscape(token)
}

func (n *Notifier) SendVerification(ctx context.Context, to, name, token string) error {
	html, err := render("verification.html", map[string]string{
		"AppName":   n.appName,
		"Name":      name,
		"Link":      n.VerificationLink(token),
		"Token":     token,
		"ExpiresIn": humanDuration(n.ttl),
	})
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindVerification, Message{
		To:      to,
		Subject: "Verify your " + n.appName + " account",
		HTML:    html,
	})
}

func (n *Notifier) SendWelcome(ctx context.Context, to, name, role string) error {
	html, err := render("welcome.html", map[string]string{
		"AppName": n.appName,
		"Name":    name,
		"Role":    role,
	})
	if err != nil {
		return err
	}
	return n.deliver(ctx, KindWelcome, Message{
		To:      to,
		Subject: "Welcome to " + n.appName,
		HTML:    html,
	})
}

func (n *Notifier) deliver(ctx context.Context, kind string, msg Message) error {
	err := n.sender.Send(ctx, msg)
	metrics.MailDeliveries.WithLabelValues(kind, metrics.Result(err)).Inc()
	return err
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
