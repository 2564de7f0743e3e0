// cli/tables.go
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/simbacat/simbacat/harness"
	"github.com/simbacat/simbacat/internal/dataset"
	"github.com/simbacat/simbacat/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	markStyle   = cellStyle.Bold(true).Foreground(lipgloss.Color("205"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Title renders a section heading.
func Title(s string) string {
	return titleStyle.Render(s)
}

// SummaryTable renders the final-tick statistics of every group. parameter
// names the sweep column and is ignored when the groups are not swept.
func SummaryTable(sums []harness.GroupSummary, parameter string) string {
	swept := len(sums) > 0 && sums[0].Swept
	headers := []string{}
	if swept {
		headers = append(headers, parameter)
	}
	headers = append(headers, "metric", "runs", "mean", "std", "p50", "p95", "representative")

	t := newTable(headers...)
	for _, s := range sums {
		rep := "-"
		if s.RepresentativeRun > 0 {
			rep = "run " + strconv.Itoa(s.RepresentativeRun)
		}
		for _, m := range s.Metrics {
			row := []string{}
			if swept {
				row = append(row, number(s.Value))
			}
			row = append(row, m.Metric, fmt.Sprintf("%d/%d", m.Samples, s.Runs), number(m.Mean), number(m.Std), number(m.P50), number(m.P95), rep)
			t.Row(row...)
		}
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}

// ScoresTable renders the selector score of every run and marks the
// representative one.
func ScoresTable(exp *dataset.Experiment) string {
	headers := []string{}
	if exp.Swept() {
		headers = append(headers, exp.Parameter)
	}
	headers = append(headers, "run", "score", "")

	t := newTable(headers...)
	marked := map[int]bool{}
	row := 0
	for _, g := range exp.Groups {
		for pos, r := range g.Runs {
			cells := []string{}
			if exp.Swept() {
				cells = append(cells, number(g.Value))
			}
			score := "-"
			if pos < len(g.Scores) {
				score = number(g.Scores[pos])
			}
			mark := ""
			if pos == g.Representative {
				mark = "★ representative"
				marked[row] = true
			}
			cells = append(cells, strconv.Itoa(r.ID), score, mark)
			t.Row(cells...)
			row++
		}
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case marked[row]:
			return markStyle
		}
		return cellStyle
	})
	return t.Render()
}

// ExperimentsTable renders archived experiments.
func ExperimentsTable(records []store.Record) string {
	t := newTable("id", "created", "name", "model", "sweep", "groups", "runs", "metrics")
	for _, r := range records {
		t.Row(
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Name,
			r.Model,
			r.Parameter,
			strconv.Itoa(r.Groups),
			strconv.Itoa(r.Runs),
			strings.Join(r.Metrics, ", "),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	return t.Render()
}
