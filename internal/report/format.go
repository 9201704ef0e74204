package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
)

const rule = "================================================================================"

// Text renders the summary as plain text.
func (s Summary) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Donation Ledger - %s\n%s\n\n", s.Title(), rule)
	b.WriteString("Run Information:\n")
	if s.RunID != "" {
		fmt.Fprintf(&b, "  %-26s%s\n", "Run ID:", s.RunID)
	}
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(&b, "  %-26s%s\n", "Start Time:", s.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "  %-26s%s\n", "Duration:", s.Duration())
	}
	b.WriteString("\nStatistics:\n")
	for _, st := range s.Stats {
		fmt.Fprintf(&b, "  %-26s%s\n", st.Label+":", st.Value)
	}

	for _, sec := range s.Sections {
		fmt.Fprintf(&b, "\n%s:\n%s\n", sec.Title, strings.Repeat("-", len(rule)))
		for _, line := range sec.Lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	fmt.Fprintf(&b, "\n%s\nEnd of Summary\n", rule)
	return b.String()
}

var htmlTemplate = template.Must(template.New("summary").Parse(`<h2>{{.Title}}</h2>
{{- if .RunID}}
<p style="color:#666">Run {{.RunID}}{{if .Duration}}, {{.Duration}}{{end}}</p>
{{- end}}
<table cellpadding="4">
{{- range .Stats}}
<tr><td>{{.Label}}</td><td align="right"><b>{{.Value}}</b></td></tr>
{{- end}}
</table>
{{- range .Sections}}
<h3{{if .Failure}} style="color:#b00020"{{end}}>{{.Title}}</h3>
<ul>
{{- range .Lines}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
`))

// HTML renders the summary as an email body.
func (s Summary) HTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, s); err != nil {
		return "", eris.Wrap(err, "report: render html")
	}
	return buf.String(), nil
}

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#89b4fa")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f849c"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#bac2de")).Width(26)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#cdd6f4")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#585b70")).
			Padding(0, 1)
)

// Console renders the summary for a terminal.
func (s Summary) Console() string {
	lines := []string{titleStyle.Render(s.Title())}
	if s.RunID != "" {
		meta := "run " + s.RunID
		if d := s.Duration(); d > 0 {
			meta += "  " + d.String()
		}
		lines = append(lines, mutedStyle.Render(meta))
	}
	lines = append(lines, "")
	for _, st := range s.Stats {
		lines = append(lines, labelStyle.Render(st.Label)+valueStyle.Render(st.Value))
	}

	for _, sec := range s.Sections {
		style := sectionStyle
		if sec.Failure {
			style = failureStyle
		}
		lines = append(lines, "", style.Render(sec.Title))
		for _, line := range sec.Lines {
			lines = append(lines, "  "+line)
		}
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
