// Package templates renders the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"html/template"
	"io"

	"github.com/a-h/templ"
)

var alertTmpl = template.Must(template.New("alert").Parse(
	`<div class="alert alert-error" role="alert" data-code="{{.Code}}">` +
		`<p class="alert-message">{{.Message}}</p>` +
		`{{if .Action}}<p class="alert-action">{{.Action}}</p>{{end}}` +
		`<p class="alert-code">Error code: {{.Code}}</p>` +
		`</div>`))

// ErrorAlert renders a dismissable error box for an HTMX swap target.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return alertTmpl.Execute(w, struct{ Message, Action, Code string }{message, action, code})
	})
}
