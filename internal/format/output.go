package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Formats lists the accepted --format values.
var Formats = []string{"json", "edn", "table"}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - edn
// - table (human-readable; payload data must be a list or an object)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	case "table":
		return WriteTable(w, v)
	default:
		return fmt.Errorf("unknown format: %s (want json|edn|table)", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// generic round-trips v through encoding/json so struct tags decide field names.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return nil, err
	}
	return x, nil
}
