// Package display renders schema summaries for the console.
package display

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/Yrrrrrf/ts-forge/internal/schema"
	"github.com/Yrrrrrf/ts-forge/internal/typemap"
)

var statsHeaders = []string{"SCHEMA", "TABLES", "VIEWS", "ENUMS", "FUNCTIONS", "PROCEDURES", "TRIGGERS", "TOTAL"}

// Printer writes schema summaries to w. Output is styled only when w is a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter creates a printer for w
func NewPrinter(w io.Writer) *Printer {
	styled := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		styled = true
	}
	return &Printer{w: w, styled: styled}
}

// Stats writes one row of element counts per schema plus a total row
func (p *Printer) Stats(schemas []schema.SchemaMetadata) error {
	var total schema.Counts
	rows := make([][]string, 0, len(schemas)+1)
	for _, s := range schemas {
		c := s.Counts()
		total = total.Add(c)
		rows = append(rows, countsRow(s.Name, c))
	}
	rows = append(rows, countsRow("TOTAL", total))

	renderer := lipgloss.NewRenderer(p.w)
	border := lipgloss.ASCIIBorder()
	if p.styled {
		border = lipgloss.RoundedBorder()
	}

	header := renderer.NewStyle().Bold(p.styled).Padding(0, 1)
	cell := renderer.NewStyle().Padding(0, 1)
	number := cell.Align(lipgloss.Right)
	footer := number.Bold(p.styled)
	if p.styled {
		header = header.Foreground(lipgloss.Color("#1D9BF0"))
	}

	last := len(rows) - 1
	t := table.New().
		Border(border).
		BorderStyle(renderer.NewStyle()).
		Headers(statsHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case col == 0:
				return cell
			case row == last:
				return footer
			default:
				return number
			}
		})

	_, err := fmt.Fprintln(p.w, t.Render())
	return err
}

func countsRow(name string, c schema.Counts) []string {
	return []string{
		name,
		strconv.Itoa(c.Tables),
		strconv.Itoa(c.Views),
		strconv.Itoa(c.Enums),
		strconv.Itoa(c.Functions),
		strconv.Itoa(c.Procedures),
		strconv.Itoa(c.Triggers),
		strconv.Itoa(c.Total()),
	}
}

// Describe writes a compact text listing of one schema's elements
func (p *Printer) Describe(s schema.SchemaMetadata) error {
	s = s.Normalize()
	_, _ = fmt.Fprintf(p.w, "SCHEMA %s\n", s.Name)

	for _, key := range schema.SortedKeys(s.Tables) {
		table := s.Tables[key]
		p.describeTable(&table)
	}

	for _, key := range schema.SortedKeys(s.Views) {
		view := s.Views[key]
		_, _ = fmt.Fprintf(p.w, "\nVIEW %s\n", view.Name)
		for _, col := range view.Columns {
			_, _ = fmt.Fprintf(p.w, "  %s\n", formatColumn(col.Name, col.Type, col.Nullable))
		}
	}

	for _, key := range schema.SortedKeys(s.Enums) {
		enum := s.Enums[key]
		_, _ = fmt.Fprintf(p.w, "\nENUM %s (%s)\n", enum.Name, strings.Join(enum.Values, "|"))
	}

	for _, group := range []map[string]schema.FunctionMetadata{s.Functions, s.Procedures, s.Triggers} {
		for _, key := range schema.SortedKeys(group) {
			fn := group[key]
			p.describeCallable(&fn)
		}
	}

	_, err := fmt.Fprintln(p.w)
	return err
}

func (p *Printer) describeTable(table *schema.TableMetadata) {
	pkStr := ""
	if pk := table.PrimaryKey(); len(pk) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(pk, ", "))
	}
	_, _ = fmt.Fprintf(p.w, "\nTABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		line := formatColumn(col.Name, col.Type, col.Nullable)
		if col.IsEnum {
			line += " ENUM"
		}
		if ref := col.References; ref != nil {
			line += fmt.Sprintf(" → %s.%s.%s", ref.Schema, ref.Table, ref.Column)
		}
		_, _ = fmt.Fprintf(p.w, "  %s\n", line)
	}
}

func (p *Printer) describeCallable(fn *schema.FunctionMetadata) {
	params := make([]string, 0, len(fn.Parameters))
	for _, param := range fn.Parameters {
		part := strings.TrimSpace(param.Name + " " + param.Type)
		if param.Mode != "" && !strings.EqualFold(string(param.Mode), string(schema.ParamIn)) {
			part = strings.ToUpper(string(param.Mode)) + " " + part
		}
		if param.HasDefault {
			part += " = DEFAULT"
		}
		params = append(params, part)
	}

	returns := ""
	if fn.ReturnType != "" {
		returns = " → " + fn.ReturnType
	}
	_, _ = fmt.Fprintf(p.w, "\n%s %s(%s)%s\n", strings.ToUpper(string(fn.Kind())), fn.Name, strings.Join(params, ", "), returns)
}

// formatColumn renders "name: source_type → ts_type [NOT NULL]"
func formatColumn(name, sourceType string, nullable bool) string {
	parts := []string{name + ":", sourceType, "→", typemap.Map(sourceType).TypeScript()}
	if !nullable {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}
