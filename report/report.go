// Package report renders scan results for the terminal or as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/use-agent/profilescan/models"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// wrapWidth is the column at which free text is wrapped.
const wrapWidth = 88

// Document is the JSON output of one scan.
type Document struct {
	Profile *models.Profile      `json:"profile,omitempty"`
	Scrape  *models.ScrapeResult `json:"scrape,omitempty"`
	Report  *models.Report       `json:"report,omitempty"`
	Error   *models.ErrorDetail  `json:"error,omitempty"`
}

// Writer renders documents to an output stream.
type Writer struct {
	out    io.Writer
	format string
	color  bool
}

// NewWriter creates a Writer. Unknown formats are an error.
func NewWriter(out io.Writer, format string, color bool) (*Writer, error) {
	switch format {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
	return &Writer{out: out, format: format, color: color}, nil
}

// Write renders doc.
func (w *Writer) Write(doc *Document) error {
	if w.format == FormatJSON {
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return w.text(doc)
}

func (w *Writer) text(doc *Document) error {
	var b strings.Builder

	if doc.Profile != nil || doc.Report != nil {
		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(&b)
		if p := doc.Profile; p != nil {
			t.AppendRow(table.Row{"Profile", p.URL})
			if p.Title != "" {
				t.AppendRow(table.Row{"Title", p.Title})
			}
			t.AppendRow(table.Row{"Source", p.Source})
		}
		if s := doc.Scrape; s != nil {
			t.AppendRow(table.Row{"Extraction", fmt.Sprintf("%s, %d chars, %d round(s)", s.Strategy, s.Length, s.Rounds)})
			t.AppendRow(table.Row{"Signed in", yesNo(s.Authenticated)})
		}
		if r := doc.Report; r != nil {
			model := r.Model
			if r.FellBack {
				model += " (fallback)"
			}
			t.AppendRow(table.Row{"Model", model})
			t.AppendRow(table.Row{"Risk level", w.risk(r.RiskLevel)})
			if r.Confidence != "" {
				t.AppendRow(table.Row{"Confidence", r.Confidence})
			}
		}
		t.Render()
	}

	if r := doc.Report; r != nil {
		w.section(&b, "Evaluation framework", r.Framework, text.FgCyan)
		w.section(&b, "Red flags", r.RedFlags, text.FgRed)
		w.section(&b, "Positive signals", r.PositiveSignals, text.FgGreen)
		w.section(&b, "Concerns", r.Concerns, text.FgYellow)
		if r.Conclusion != "" {
			b.WriteString("\n" + w.heading("Conclusion", text.FgWhite) + "\n")
			b.WriteString(text.WrapSoft(r.Conclusion, wrapWidth) + "\n")
		}
	}

	if e := doc.Error; e != nil {
		b.WriteString("\n" + w.paint(text.Colors{text.FgRed, text.Bold}, "Error: "+e.Code) + "\n")
		b.WriteString(text.WrapSoft(e.Message, wrapWidth) + "\n")
		if e.Artifact != "" {
			b.WriteString("Screenshot: " + e.Artifact + "\n")
		}
	}

	_, err := io.WriteString(w.out, b.String())
	return err
}

func (w *Writer) section(b *strings.Builder, title string, items []string, color text.Color) {
	if len(items) == 0 {
		return
	}
	l := list.NewWriter()
	l.SetStyle(list.StyleBulletCircle)
	for _, item := range items {
		l.AppendItem(text.WrapSoft(item, wrapWidth))
	}
	b.WriteString("\n" + w.heading(title, color) + "\n")
	b.WriteString(l.Render() + "\n")
}

func (w *Writer) heading(title string, color text.Color) string {
	return w.paint(text.Colors{color, text.Bold}, title)
}

func (w *Writer) risk(level string) string {
	switch level {
	case models.RiskLow:
		return w.paint(text.Colors{text.FgGreen, text.Bold}, level)
	case models.RiskMedium:
		return w.paint(text.Colors{text.FgYellow, text.Bold}, level)
	case models.RiskHigh:
		return w.paint(text.Colors{text.FgRed, text.Bold}, level)
	default:
		return level
	}
}

func (w *Writer) paint(c text.Colors, s string) string {
	if !w.color {
		return s
	}
	return c.Sprint(s)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
