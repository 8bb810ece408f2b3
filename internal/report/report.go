// Package report renders the presented domain counts to a writer.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.yaml.in/yaml/v4"

	"inboxdomains/internal/model"
)

const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Summary is the document written by the json and yaml formats.
type Summary struct {
	Total   int                 `json:"total" yaml:"total"`
	Domains []model.DomainCount `json:"domains" yaml:"domains"`
}

func summarize(rows []model.DomainCount) Summary {
	s := Summary{Domains: rows}
	if s.Domains == nil {
		s.Domains = []model.DomainCount{}
	}
	for _, r := range rows {
		s.Total += r.Count
	}
	return s
}

// Render writes rows, already sorted, in the given format.
func Render(w io.Writer, format string, rows []model.DomainCount) error {
	switch format {
	case FormatText, "":
		return renderText(w, rows)
	case FormatTable:
		return renderTable(w, rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summarize(rows))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(summarize(rows)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, rows []model.DomainCount) error {
	if _, err := fmt.Fprint(w, "\nDomain Analysis Results:\n=======================\n"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s: %d emails\n", r.Domain, r.Count); err != nil {
			return err
		}
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

func renderTable(w io.Writer, rows []model.DomainCount) error {
	total := summarize(rows).Total

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DOMAIN", "EMAILS", "SHARE").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col > 0:
				return numberStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(r.Domain, strconv.Itoa(r.Count), share(r.Count, total))
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func share(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}
