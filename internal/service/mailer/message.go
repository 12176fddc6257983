package mailer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Message handed to the dispatcher. Rendered to Email by worker
type Message struct {
	Kind  Kind
	To    string
	Token string

	// Token lifetime, mentioned in the letter
	ValidFor time.Duration
}

// Rendered email ready to be sent
type Email struct {
	To      string
	Subject string
	HTML    string

	// Action link from the letter. Senders that can't deliver HTML may use it directly
	Link string
}

//go:embed templates/*.html
var templatesFS embed.FS

type kindSpec struct {
	subject string
	path    string
	tmpl    *template.Template
}

type Renderer struct {
	publicURL string
	kinds     map[Kind]kindSpec
}

// Renderer builds links against publicURL, e.g. "https://contacts.example.com"
func NewRenderer(publicURL string) (*Renderer, error) {
	u, err := url.Parse(publicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("public url must be absolute, got %q", publicURL)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error while parsing email templates. Err: %w", err)
	}

	lookup := func(name string) *template.Template {
		t := tmpl.Lookup(name)
		if t == nil {
			panic("email template not found: " + name)
		}
		return t
	}

	return &Renderer{
		publicURL: strings.TrimRight(publicURL, "/"),
		kinds: map[Kind]kindSpec{
			KindVerification: {
				subject: "Confirm your email",
				path:    "/api/auth/confirmed_email/",
				tmpl:    lookup("verification.html"),
			},
			KindPasswordReset: {
				subject: "Reset your password",
				path:    "/api/auth/change_password/",
				tmpl:    lookup("password_reset.html"),
			},
		},
	}, nil
}

func (r *Renderer) Render(msg Message) (Email, error) {
	spec, ok := r.kinds[msg.Kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	if msg.To == "" || msg.Token == "" {
		return Email{}, errors.New("message recipient and token must not be empty")
	}

	link := r.publicURL + spec.path + url.PathEscape(msg.Token)

	var body bytes.Buffer
	err := spec.tmpl.Execute(&body, struct {
		Email    string
		Link     string
		ValidFor string
	}{
		Email:    msg.To,
		Link:     link,
		ValidFor: humanDuration(msg.ValidFor),
	})
	if err != nil {
		return Email{}, fmt.Errorf("error while rendering %s email. Err: %w", msg.Kind, err)
	}

	return Email{
		To:      msg.To,
		Subject: spec.subject,
		HTML:    body.String(),
		Link:    link,
	}, nil
}

func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}

	switch {
	case d <= 0:
		return "a limited time"
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return d.String()
	}
}
