package format

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes v as EDN. Objects become maps with keyword keys, snake_case field
// names turn into kebab-case keywords (:image-name).
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	var sb strings.Builder
	ednWriter{sb: &sb, pretty: pretty}.value(x, 0)
	sb.WriteByte('\n')
	_, err = io.WriteString(w, sb.String())
	return err
}

type ednWriter struct {
	sb     *strings.Builder
	pretty bool
}

func (e ednWriter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		e.sb.WriteString("nil")
	case bool:
		e.sb.WriteString(strconv.FormatBool(t))
	case string:
		e.sb.WriteString(strconv.Quote(t))
	case float64:
		if t == float64(int64(t)) {
			e.sb.WriteString(strconv.FormatInt(int64(t), 10))
		} else {
			e.sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
		}
	case []any:
		e.seq('[', ']', len(t), depth, func(i int) { e.value(t[i], depth+1) })
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.seq('{', '}', len(keys), depth, func(i int) {
			e.sb.WriteString(Keyword(keys[i]))
			e.sb.WriteByte(' ')
			e.value(t[keys[i]], depth+1)
		})
	default:
		e.sb.WriteString(strconv.Quote(fmt.Sprint(v)))
	}
}

// seq writes n elements between open and end, one per line when pretty.
func (e ednWriter) seq(open, end byte, n, depth int, elem func(i int)) {
	e.sb.WriteByte(open)
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			e.sb.WriteByte('\n')
			e.sb.WriteString(strings.Repeat("  ", depth+1))
		case i > 0:
			e.sb.WriteByte(' ')
		}
		elem(i)
	}
	if e.pretty && n > 0 {
		e.sb.WriteByte('\n')
		e.sb.WriteString(strings.Repeat("  ", depth))
	}
	e.sb.WriteByte(end)
}

// Keyword converts a JSON field name to an EDN keyword.
func Keyword(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	if s == "" {
		s = "_"
	}
	return ":" + s
}
