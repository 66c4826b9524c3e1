package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/jaytaylor/html2text"

	"guesthouse/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates renders the three contact message templates.
type Templates struct {
	set *template.Template
}

type templateData struct {
	Subject     string
	Submission  domain.Submission
	Reference   string
	SubmittedAt string
}

func NewTemplates() (*Templates, error) {
	set, err := template.New("mail").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	for _, k := range []domain.Kind{domain.KindTour, domain.KindMoveIn, domain.KindOther} {
		if set.Lookup(templateName(k)) == nil {
			return nil, fmt.Errorf("mail template %s missing", templateName(k))
		}
	}
	return &Templates{set: set}, nil
}

func templateName(k domain.Kind) string { return string(k) + ".html" }

// Render produces the HTML and plain-text bodies for sub as routed by r.
func (t *Templates) Render(r domain.Route, sub domain.Submission, ref string, at time.Time) (html, text string, err error) {
	if sub == nil || sub.Kind() != r.Template {
		return "", "", &domain.InvariantViolation{Op: "render", Detail: fmt.Sprintf("template %q does not match submission %T", r.Template, sub)}
	}
	tmpl := t.set.Lookup(templateName(r.Template))
	if tmpl == nil {
		return "", "", &domain.InvariantViolation{Op: "render", Detail: "no template for " + string(r.Template)}
	}

	var buf bytes.Buffer
	data := templateData{
		Subject:     r.Subject,
		Submission:  sub,
		Reference:   ref,
		SubmittedAt: at.UTC().Format(time.RFC3339),
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", r.Template, err)
	}
	html = buf.String()

	text, err = html2text.FromString(html, html2text.Options{PrettyTables: true})
	if err != nil {
		return "", "", fmt.Errorf("plain text for %s: %w", r.Template, err)
	}
	return html, text, nil
}
