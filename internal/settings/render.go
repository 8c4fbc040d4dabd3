package settings

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cast"

	"elicate/pkg/chattypes"
)

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// FormatValue renders a resolved value as a single line of text.
func FormatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(tv, ", ")
	case float64:
		return cast.ToString(tv)
	default:
		return fmt.Sprint(tv)
	}
}

// Renderer draws forms for a terminal. Styling is dropped when the output
// cannot show colors.
type Renderer struct {
	lg     *lipgloss.Renderer
	plain  bool
	title  lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	source lipgloss.Style
	help   lipgloss.Style
	insert lipgloss.Style
	delete lipgloss.Style
}

// NewRenderer creates a renderer for w.
func NewRenderer(w io.Writer) *Renderer {
	lg := lipgloss.NewRenderer(w)
	r := &Renderer{
		lg:     lg,
		plain:  lg.ColorProfile() == termenv.Ascii,
		title:  lg.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:  lg.NewStyle().Bold(true),
		value:  lg.NewStyle().Foreground(lipgloss.Color("10")),
		source: lg.NewStyle().Faint(true),
		help:   lg.NewStyle().Faint(true).Italic(true),
		insert: lg.NewStyle().Foreground(lipgloss.Color("10")),
		delete: lg.NewStyle().Foreground(lipgloss.Color("9")).Strikethrough(true),
	}
	return r
}

// Plain reports whether output is unstyled.
func (r *Renderer) Plain() bool {
	return r.plain
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.plain {
		return text
	}
	return s.Render(text)
}

// DisplayValue returns the value of f as shown to the user.
func DisplayValue(f Field) string {
	text := FormatValue(f.Value)
	if f.Masked() {
		return MaskSecret(text)
	}
	return text
}

// RenderForm draws every section of form.
func (r *Renderer) RenderForm(form Form) string {
	var b strings.Builder
	for i, s := range form.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		title := s.Title
		if s.Owner != "" {
			title += " (plugin " + s.Owner + ")"
		}
		if s.Separate {
			title = "== " + title + " =="
		}
		b.WriteString(r.style(r.title, title))
		b.WriteString("\n")
		for _, f := range s.Fields {
			r.renderField(&b, f)
		}
	}
	return b.String()
}

func (r *Renderer) renderField(b *strings.Builder, f Field) {
	value := DisplayValue(f)
	if value == "" && f.Placeholder != "" {
		value = f.Placeholder
	}
	if f.Control == chattypes.ControlTextarea {
		value = strings.ReplaceAll(value, "\n", "\n      ")
	}

	line := fmt.Sprintf("  %s %s = %s %s",
		r.style(r.label, f.Label),
		"["+f.Key()+"]",
		r.style(r.value, value),
		r.style(r.source, "("+f.Source.String()+")"),
	)
	if f.Disabled {
		line += " " + r.style(r.source, "disabled")
	}
	b.WriteString(line)
	b.WriteString("\n")
	if f.Help != "" {
		b.WriteString("    " + r.style(r.help, f.Help) + "\n")
	}
}

// RenderQuick draws the quick-settings panel on one line per item.
func (r *Renderer) RenderQuick(items []QuickItem) string {
	var b strings.Builder
	for _, it := range items {
		mark := FormatValue(it.Value)
		if it.Toggle {
			mark = "[ ]"
			if cast.ToBool(it.Value) {
				mark = "[x]"
			}
		}
		fmt.Fprintf(&b, "%s %s\n", mark, r.style(r.label, it.Label))
	}
	return b.String()
}

// ResetPreview shows what a reset of f changes, as a character diff from the
// current value to after, the value that resolves once the override is gone.
func (r *Renderer) ResetPreview(f Field, after chattypes.ResolvedOption) string {
	current, next := FormatValue(f.Value), FormatValue(after.Value)
	if f.Masked() {
		current, next = MaskSecret(current), MaskSecret(next)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(current, next, false))

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			if r.plain {
				b.WriteString("[-" + d.Text + "-]")
			} else {
				b.WriteString(r.delete.Render(d.Text))
			}
		case diffmatchpatch.DiffInsert:
			if r.plain {
				b.WriteString("{+" + d.Text + "+}")
			} else {
				b.WriteString(r.insert.Render(d.Text))
			}
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
