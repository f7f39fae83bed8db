package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/strapi-client/internal/constants"
)

// NotAvailable is shown for empty table cells.
const NotAvailable = "-"

//nolint:gochecknoglobals // Fixed set of output formats
var outputFormats = []string{constants.OutputFormatTable, constants.OutputFormatJSON, constants.OutputFormatYAML}

// render writes value as JSON or YAML, or calls table for table output. A nil
// table falls back to YAML.
func render(cmd *cobra.Command, value interface{}, table func(io.Writer) error) error {
	out := cmd.OutOrStdout()

	switch viper.GetString("output") {
	case constants.OutputFormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		err := encoder.Encode(value)
		if err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}

		return nil
	case constants.OutputFormatYAML:
	case constants.OutputFormatTable, "":
		if table != nil {
			return table(out)
		}
	default:
		return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, viper.GetString("output"))
	}

	encoder := yaml.NewEncoder(out)
	defer func() { _ = encoder.Close() }()

	err := encoder.Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode YAML output: %w", err)
	}

	return nil
}

// renderTable renders a header and rows.
func renderTable(out io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(out)

	headers := make([]any, 0, len(header))
	for _, h := range header {
		headers = append(headers, h)
	}

	table.Header(headers...)

	for _, row := range rows {
		err := table.Append(row)
		if err != nil {
			return fmt.Errorf("failed to append table row: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return NotAvailable
	}

	return humanize.IBytes(uint64(bytes))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return NotAvailable
	}

	return humanize.Time(*t)
}

func formatOptional(value *string) string {
	if value == nil || *value == "" {
		return NotAvailable
	}

	return *value
}

// styles for human-readable summaries.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles() styles {
	if viper.GetBool("no_color") {
		plain := lipgloss.NewStyle()

		return styles{title: plain.Bold(true), label: plain, success: plain, warning: plain, failure: plain}
	}

	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// field writes one "label: value" summary line.
func (s styles) field(out io.Writer, label string, value interface{}) {
	_, _ = fmt.Fprintf(out, "  %s %v\n", s.label.Render(label+":"), value)
}
