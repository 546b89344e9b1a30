package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"sigs.k8s.io/yaml"

	"clusterwatch/internal/events"
	"clusterwatch/internal/kubeconfig"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// eventPrinter writes engine events to the terminal.
type eventPrinter struct {
	out    io.Writer
	format string
	enc    *json.Encoder
}

func newEventPrinter(out io.Writer, format string) (*eventPrinter, error) {
	switch format {
	case OutputText:
		return &eventPrinter{out: out, format: format}, nil
	case OutputJSON:
		return &eventPrinter{out: out, format: format, enc: json.NewEncoder(out)}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want %s or %s)", format, OutputText, OutputJSON)
	}
}

func (p *eventPrinter) Print(ev events.Event) error {
	if p.enc != nil {
		return p.enc.Encode(ev)
	}
	_, err := fmt.Fprintln(p.out, formatEvent(ev))
	return err
}

func formatEvent(ev events.Event) string {
	ts := text.FgHiBlack.Sprint(ev.Time.Format("15:04:05"))

	switch ev.Kind {
	case events.KindNamespaceAdded:
		return fmt.Sprintf("%s %s %s %s", ts, source(ev), text.FgGreen.Sprint("+"), ev.Namespace)
	case events.KindNamespaceRemoved:
		return fmt.Sprintf("%s %s %s %s", ts, source(ev), text.FgRed.Sprint("-"), ev.Namespace)
	case events.KindWarning:
		return fmt.Sprintf("%s %s %s", ts, text.FgYellow.Sprint("warning:"), ev.Message)
	case events.KindConfigReplaced:
		return fmt.Sprintf("%s %s", ts, describeConfig(ev.Config))
	default:
		return fmt.Sprintf("%s %s", ts, ev.Kind)
	}
}

func source(ev events.Event) string {
	return text.FgHiCyan.Sprintf("[%s/%s]", ev.Feed, ev.Context)
}

func describeConfig(cfg *kubeconfig.Config) string {
	if cfg == nil {
		return "kubeconfig replaced"
	}
	if !cfg.Valid {
		return fmt.Sprintf("kubeconfig %s %s: %s", cfg.Path, text.FgRed.Sprint("invalid"), cfg.Error)
	}
	return fmt.Sprintf("kubeconfig %s: %d context(s) [%s]", cfg.Path, len(cfg.Contexts), strings.Join(cfg.Names(), ", "))
}

// contextRow is the serialized form of one context for the contexts command.
type contextRow struct {
	kubeconfig.Context
	Current bool `json:"current"`
}

type contextsView struct {
	Path           string       `json:"path"`
	CurrentContext string       `json:"currentContext,omitempty"`
	Contexts       []contextRow `json:"contexts"`
}

func newContextsView(cfg kubeconfig.Config) contextsView {
	view := contextsView{Path: cfg.Path, CurrentContext: cfg.CurrentContext, Contexts: []contextRow{}}
	for _, c := range cfg.Contexts {
		view.Contexts = append(view.Contexts, contextRow{Context: c, Current: c.Name == cfg.CurrentContext})
	}
	return view
}

func printContexts(out io.Writer, cfg kubeconfig.Config, format string) error {
	view := newContextsView(cfg)

	switch format {
	case OutputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case OutputYAML:
		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("failed to marshal contexts: %w", err)
		}
		_, err = out.Write(data)
		return err
	case OutputText:
	default:
		return fmt.Errorf("unsupported output format %q (want %s, %s or %s)", format, OutputText, OutputJSON, OutputYAML)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("CURRENT"),
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("CLUSTER"),
		text.FgHiCyan.Sprint("USER"),
		text.FgHiCyan.Sprint("NAMESPACE"),
	})
	for _, row := range view.Contexts {
		marker := ""
		if row.Current {
			marker = text.FgGreen.Sprint("*")
		}
		t.AppendRow(table.Row{marker, row.Name, row.Cluster, row.User, row.Namespace})
	}
	t.Render()
	return nil
}
