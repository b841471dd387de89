package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fxamacker/cbor/v2"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/lambdajobs"
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/errors"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	jobStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	modeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD75F"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// fileReport is the outcome for one input file.
type fileReport struct {
	File   string             `json:"file" yaml:"file" cbor:"file"`
	Output string             `json:"output,omitempty" yaml:"output,omitempty" cbor:"output,omitempty"`
	Result *lambdajobs.Result `json:"result,omitempty" yaml:"result,omitempty" cbor:"result,omitempty"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty" cbor:"error,omitempty"`
}

func (r *fileReport) failed() bool {
	return r.Error != "" || (r.Result != nil && r.Result.HasErrors())
}

// setupColor applies the colour mode to lipgloss. Auto colours only
// when stdout is a terminal.
func setupColor(mode string) {
	switch mode {
	case colorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	case colorAlways:
		lipgloss.SetColorProfile(termenv.TrueColor)
	default:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	}
}

// writeReports renders reports to w in format.
func writeReports(w io.Writer, format string, reports []*fileReport) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	case formatCBOR:
		em, err := cbor.CanonicalEncOptions().EncMode()
		if err != nil {
			return err
		}
		data, err := em.Marshal(reports)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case formatText:
		var b strings.Builder
		for _, r := range reports {
			writeText(&b, r)
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
	return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown output format %q", format))
}

func writeText(b *strings.Builder, r *fileReport) {
	b.WriteString(titleStyle.Render(r.File))
	b.WriteString("\n")
	if r.Error != "" {
		b.WriteString(errorStyle.Render("  " + r.Error))
		b.WriteString("\n\n")
		return
	}
	res := r.Result
	fmt.Fprintf(b, "  %d systems, %d jobs\n", res.Systems, len(res.Jobs))
	for _, j := range res.Jobs {
		fmt.Fprintf(b, "  %s %s.%s %s\n", jobStyle.Render(j.Struct), j.System, j.Method, modeStyle.Render(jobMode(j)))
	}
	for _, d := range res.Diagnostics {
		b.WriteString("  ")
		b.WriteString(styleDiagnostic(d))
		b.WriteString("\n")
	}
	if r.Output != "" {
		b.WriteString(helpStyle.Render("  wrote " + r.Output))
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func jobMode(j lambdajobs.Job) string {
	s := j.Kind + "." + j.Mode
	if j.Burst {
		s += " burst"
	}
	if j.ClosureAsStruct {
		s += " struct-closure"
	}
	return s
}

func styleDiagnostic(d diag.Diagnostic) string {
	if d.Severity == diag.SeverityWarning {
		return warningStyle.Render(d.String())
	}
	return errorStyle.Render(d.String())
}
