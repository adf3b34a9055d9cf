package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Tabular values choose their own columns in table output.
type Tabular interface {
	TableHeaders() []string
	TableRows() [][]string
}

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// WriteTable renders the payload's "data" (or the value itself) as a table.
// Lists of objects get one column per field; an object gets key/value rows.
func WriteTable(w io.Writer, v any) error {
	if m, ok := v.(map[string]any); ok {
		if d, ok := m["data"]; ok {
			v = d
		}
	}

	headers, rows, err := tableOf(v)
	if err != nil {
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func tableOf(v any) ([]string, [][]string, error) {
	if t, ok := v.(Tabular); ok {
		return t.TableHeaders(), t.TableRows(), nil
	}

	x, err := generic(v)
	if err != nil {
		return nil, nil, err
	}
	switch t := x.(type) {
	case []any:
		return listTable(t)
	case map[string]any:
		keys := sortedKeys(t)
		rows := make([][]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, []string{k, cell(t[k])})
		}
		return []string{"field", "value"}, rows, nil
	default:
		return []string{"value"}, [][]string{{cell(t)}}, nil
	}
}

func listTable(xs []any) ([]string, [][]string, error) {
	seen := map[string]bool{}
	var cols []string
	for _, it := range xs {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range sortedKeys(m) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	if len(cols) == 0 {
		rows := make([][]string, 0, len(xs))
		for _, it := range xs {
			rows = append(rows, []string{cell(it)})
		}
		return []string{"value"}, rows, nil
	}

	rows := make([][]string, 0, len(xs))
	for _, it := range xs {
		m, _ := it.(map[string]any)
		row := make([]string, len(cols))
		for i, c := range cols {
			if val, ok := m[c]; ok {
				row[i] = cell(val)
			}
		}
		rows = append(rows, row)
	}
	return cols, rows, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
