package render

import (
	"bytes"
	"text/template"

	"github.com/pkg/errors"
)

// Renderer fills a mail template with the values of one row.
type Renderer struct {
	tmpl *template.Template
}

// New parses text. Templates use text/template syntax, e.g. {{.email}}, with
// the helpers of Funcs available. Referencing an absent key is an error.
func New(text string) (*Renderer, error) {
	tmpl, err := template.New("mail").
		Option("missingkey=error").
		Funcs(Funcs()).
		Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse template")
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template with namespace as dot.
func (r *Renderer) Render(namespace map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, namespace); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return buf.String(), nil
}
