package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// RenderedMessage is a batch ready for a mail client.
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

// HTMLEmailRenderer renders batches as HTML emails with a plain text fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

// NewHTMLEmailRenderer creates a renderer with the default email template.
func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Funcs(template.FuncMap{
		"orDash": func(s string) string { return orDefault(s, "-") },
		"inc":    func(i int) int { return i + 1 },
	}).Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

// Render produces an HTML email. The plain text part is the chat message.
func (r *HTMLEmailRenderer) Render(b Batch) (*RenderedMessage, error) {
	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, emailData{
		Subject:  b.Subject(),
		Category: b.Category.Label(),
		Total:    b.Total,
		Entries:  b.Entries,
	}); err != nil {
		return nil, fmt.Errorf("failed to render HTML template: %w", err)
	}

	return &RenderedMessage{
		Subject: b.Subject(),
		Text:    b.Text,
		HTML:    htmlBuf.String(),
	}, nil
}
