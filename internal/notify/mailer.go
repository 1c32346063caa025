package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

//go:embed templates
var templateFS embed.FS

const defaultMailEndpoint = "https://api.smtp2go.com/v3/email/send"

// Mailer sends one email per transition through the SMTP2GO HTTP API.
type Mailer struct {
	apiKey     string
	sender     string
	recipients []string
	endpoint   string
	client     *http.Client
	tmpl       *template.Template
}

type mailRequest struct {
	APIKey   string   `json:"api_key"`
	To       []string `json:"to"`
	Sender   string   `json:"sender"`
	Subject  string   `json:"subject"`
	TextBody string   `json:"text_body"`
	HTMLBody string   `json:"html_body"`
}

func NewMailer(apiKey, sender string, recipients []string) (*Mailer, error) {
	tmpl, err := template.New("email").ParseFS(templateFS, "templates/transition.tmpl")
	if err != nil {
		return nil, fmt.Errorf("error parsing mail templates: %w", err)
	}
	return &Mailer{
		apiKey:     apiKey,
		sender:     sender,
		recipients: recipients,
		endpoint:   defaultMailEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		tmpl: tmpl,
	}, nil
}

// WithEndpoint overrides the API endpoint, used by tests.
func (m *Mailer) WithEndpoint(url string) *Mailer {
	m.endpoint = url
	return m
}

func (m *Mailer) Notify(ctx context.Context, t models.Transition) error {
	subject := new(bytes.Buffer)
	if err := m.tmpl.ExecuteTemplate(subject, "subject", t); err != nil {
		return fmt.Errorf("error rendering subject: %w", err)
	}
	plainBody := new(bytes.Buffer)
	if err := m.tmpl.ExecuteTemplate(plainBody, "plainBody", t); err != nil {
		return fmt.Errorf("error rendering plain body: %w", err)
	}
	htmlBody := new(bytes.Buffer)
	if err := m.tmpl.ExecuteTemplate(htmlBody, "htmlBody", t); err != nil {
		return fmt.Errorf("error rendering html body: %w", err)
	}

	payload, err := json.Marshal(mailRequest{
		APIKey:   m.apiKey,
		To:       m.recipients,
		Sender:   m.sender,
		Subject:  subject.String(),
		TextBody: plainBody.String(),
		HTMLBody: htmlBody.String(),
	})
	if err != nil {
		return fmt.Errorf("error marshaling mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending mail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mail API returned status: %d", resp.StatusCode)
	}
	return nil
}
