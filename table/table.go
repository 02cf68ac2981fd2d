package table

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ColType is the declared type of a column.
type ColType string

const (
	TypeString ColType = "str"
	TypeInt    ColType = "int"
	TypeFloat  ColType = "float"
	TypeBool   ColType = "bool"
)

// ParseColType parses a "column:type" declaration.
func ParseColType(s string) (string, ColType, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", errors.Errorf("invalid column type %q, expected column:type", s)
	}
	name, typ := s[:i], ColType(s[i+1:])
	switch typ {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return name, typ, nil
	default:
		return "", "", errors.Errorf("unknown type %q for column %q", typ, name)
	}
}

func (t ColType) convert(v string) (any, error) {
	switch t {
	case TypeInt:
		return strconv.Atoi(strings.TrimSpace(v))
	case TypeFloat:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case TypeBool:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return v, nil
	}
}

// Options of Read.
type Options struct {
	Delimiter rune               // ',' by default
	Types     map[string]ColType // columns not listed stay strings
}

// Table is a typed CSV file.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// Read parses a CSV file whose first record names the columns.
func Read(r io.Reader, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		if opts.Delimiter == '\r' || opts.Delimiter == '\n' || opts.Delimiter == '"' || opts.Delimiter == utf8.RuneError {
			return nil, errors.Errorf("invalid delimiter %q", opts.Delimiter)
		}
		cr.Comma = opts.Delimiter
	}

	columns, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty CSV input, a header line is required")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV header")
	}

	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			return nil, errors.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for name := range opts.Types {
		if !seen[name] {
			return nil, errors.Errorf("type declared for unknown column %q", name)
		}
	}

	t := &Table{Columns: columns}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read CSV")
		}
		line, _ := cr.FieldPos(0)

		row := make(map[string]any, len(columns))
		for i, name := range columns {
			v, err := opts.Types[name].convert(record[i])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d, column %q", line, name)
			}
			row[name] = v
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Column returns the values of one column across all rows.
func (t *Table) Column(name string) []any {
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[name]
	}
	return values
}

// Namespaces returns one map per row: the row values, plus colsName mapped
// to every column's values unless a column already has that name.
func (t *Table) Namespaces(colsName string) []map[string]any {
	cols := make(map[string][]any, len(t.Columns))
	for _, c := range t.Columns {
		cols[c] = t.Column(c)
	}

	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		ns := make(map[string]any, len(row)+1)
		for k, v := range row {
			ns[k] = v
		}
		if _, clash := ns[colsName]; !clash && colsName != "" {
			ns[colsName] = cols
		}
		out[i] = ns
	}
	return out
}
