package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Align is the horizontal alignment of a column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Column describes one table column.
type Column struct {
	Title string
	Align Align
	// MaxWidth truncates longer cells with an ellipsis. Zero means unlimited.
	MaxWidth int
}

// Cell is one table value. Style, when set, is applied after padding so
// that escape sequences never skew the alignment.
type Cell struct {
	Text  string
	Style func(string) string
}

// Table lays out rows in aligned columns. Widths are measured in terminal
// cells, so accented and wide characters line up.
type Table struct {
	columns []Column
	rows    [][]Cell
	header  func(string) string
	sep     string
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{columns: columns, sep: "  "}
}

// WithHeaderStyle sets the style applied to column titles.
func (t *Table) WithHeaderStyle(style func(string) string) *Table {
	t.header = style
	return t
}

// AddRow appends a row of plain values.
func (t *Table) AddRow(values ...string) {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Cell{Text: v}
	}
	t.AddCells(cells...)
}

// AddCells appends a row of cells. Missing trailing cells are left empty;
// extra cells are ignored.
func (t *Table) AddCells(cells ...Cell) {
	row := make([]Cell, len(t.columns))
	copy(row, cells)
	for i := range row {
		row[i].Text = t.fit(i, row[i].Text)
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) fit(col int, text string) string {
	if max := t.columns[col].MaxWidth; max > 0 && runewidth.StringWidth(text) > max {
		return runewidth.Truncate(text, max, "…")
	}
	return text
}

func (t *Table) widths() []int {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = runewidth.StringWidth(c.Title)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell.Text); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func pad(text string, width int, align Align) string {
	if align == AlignRight {
		return runewidth.FillLeft(text, width)
	}
	return runewidth.FillRight(text, width)
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	widths := t.widths()

	titles := make([]string, len(t.columns))
	for i, c := range t.columns {
		titles[i] = pad(c.Title, widths[i], c.Align)
		if t.header != nil {
			titles[i] = t.header(titles[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(titles, t.sep), " ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		parts := make([]string, len(row))
		for i, cell := range row {
			text := pad(cell.Text, widths[i], t.columns[i].Align)
			if i == len(row)-1 && t.columns[i].Align == AlignLeft {
				text = cell.Text
			}
			if cell.Style != nil {
				text = cell.Style(text)
			}
			parts[i] = text
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, t.sep)); err != nil {
			return err
		}
	}
	return nil
}
