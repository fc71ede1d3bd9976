// Package report prints a reconciled view for operators working from a
// terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mint-desk/pkg/reconcile"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	kindStyles = map[reconcile.Kind]lipgloss.Style{
		reconcile.Claimed:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		reconcile.PaidNoKYC:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		reconcile.KYCFinished: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		reconcile.NotClaimed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

var headers = []string{"Name", "Surname", "Email", "Phone", "Status"}

// Table renders one row per person followed by a summary line.
func Table(w io.Writer, view *reconcile.View) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == len(headers)-1 && row >= 0 && row < len(view.Rows) {
				return kindStyles[view.Rows[row].Status.Kind].Padding(0, 1)
			}
			return cellStyle
		})

	for _, r := range view.Rows {
		name := r.Name
		if r.Synthetic {
			name += " *"
		}
		t.Row(name, r.Surname, r.Email, r.PhoneNumber, r.Status.Label())
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, mutedStyle.Render(Summary(view)))
	return err
}

// Summary is the one-line count of people per status.
func Summary(view *reconcile.View) string {
	parts := []string{
		fmt.Sprintf("%d people", len(view.Rows)),
		fmt.Sprintf("%d claimed", view.Counts[reconcile.Claimed]),
		fmt.Sprintf("%d paid", view.Counts[reconcile.PaidNoKYC]),
		fmt.Sprintf("%d kyc", view.Counts[reconcile.KYCFinished]),
		fmt.Sprintf("%d not claimed", view.Counts[reconcile.NotClaimed]),
		fmt.Sprintf("next token %s", view.NextTokenID),
	}
	return strings.Join(parts, " · ")
}

// JSON writes the view as indented JSON.
func JSON(w io.Writer, view *reconcile.View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
