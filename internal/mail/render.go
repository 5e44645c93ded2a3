package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/message.html
var templateFS embed.FS

// Renderer fills the fixed HTML layout with a subject and body.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded layout.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/message.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render returns the HTML document for subject and body. Body line breaks
// become <br> elements; all text is HTML-escaped.
func (r *Renderer) Render(subject, body string) (string, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	data := struct {
		Subject string
		Lines   []string
	}{
		Subject: subject,
		Lines:   strings.Split(body, "\n"),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render mail template: %w", err)
	}
	return buf.String(), nil
}
