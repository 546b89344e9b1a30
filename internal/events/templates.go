package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"clusterwatch/pkg/logging"
)

var defaultTemplates = map[Reason]string{
	ReasonMultipleKubeconfigs: `multiple kubeconfig files found, using {{ .Path }} and ignoring {{ .Ignored | join ", " }}`,
	ReasonContextFallback:     `{{ if .Requested }}context {{ .Requested | quote }} not found{{ else }}no current-context set{{ end }}, following {{ .Context }}`,
	ReasonContextRedefined:    `context {{ .Context }} changed from {{ .Previous.Cluster }}/{{ .Previous.User }} to {{ .Current.Cluster }}/{{ .Current.User }}; existing watch kept`,
	ReasonConfigInvalid:       `kubeconfig {{ default "<unset>" .Path }} is not usable{{ if .Error }}: {{ .Error }}{{ end }}`,
	ReasonFileWatchFailed:     `cannot watch {{ .Path }} for changes{{ if .Error }}: {{ .Error }}{{ end }}`,
}

// MessageTemplateEngine renders warning messages from named templates.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[Reason]*template.Template
}

// NewMessageTemplateEngine creates an engine loaded with the default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	e := &MessageTemplateEngine{templates: make(map[Reason]*template.Template)}
	for reason, text := range defaultTemplates {
		if err := e.SetTemplate(reason, text); err != nil {
			panic(fmt.Sprintf("default template %s: %v", reason, err))
		}
	}
	return e
}

// SetTemplate parses text and registers it for reason.
func (e *MessageTemplateEngine) SetTemplate(reason Reason, text string) error {
	tmpl, err := template.New(string(reason)).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", reason, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[reason] = tmpl
	return nil
}

// Render generates the message for reason.
func (e *MessageTemplateEngine) Render(reason Reason, data EventData) string {
	e.mu.RLock()
	tmpl, exists := e.templates[reason]
	e.mu.RUnlock()

	if !exists {
		return fmt.Sprintf("warning: %s", reason)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		logging.Error("Events", err, "Failed to render template %s", reason)
		return fmt.Sprintf("warning: %s", reason)
	}
	return buf.String()
}

// Warning renders the message for reason and wraps it in a Warning event.
func (e *MessageTemplateEngine) Warning(reason Reason, data EventData) Event {
	return Warning(reason, e.Render(reason, data))
}
