package table

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColType(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		typ     ColType
		wantErr string
	}{
		{in: "value:float", name: "value", typ: TypeFloat},
		{in: "n:int", name: "n", typ: TypeInt},
		{in: "ok:bool", name: "ok", typ: TypeBool},
		{in: "a:b:str", name: "a:b", typ: TypeString},
		{in: "value", wantErr: "expected column:type"},
		{in: ":int", wantErr: "expected column:type"},
		{in: "value:", wantErr: "expected column:type"},
		{in: "value:decimal", wantErr: `unknown type "decimal"`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, typ, err := ParseColType(tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestRead_Typed(t *testing.T) {
	in := "email,name,value,passed\nann@x,ann,12.5,true\nbob@x,bob,7,false\n"

	tab, err := Read(strings.NewReader(in), Options{Types: map[string]ColType{
		"value":  TypeFloat,
		"passed": TypeBool,
	}})

	require.NoError(t, err)
	assert.Equal(t, []string{"email", "name", "value", "passed"}, tab.Columns)
	require.Len(t, tab.Rows, 2)
	assert.Equal(t, map[string]any{"email": "ann@x", "name": "ann", "value": 12.5, "passed": true}, tab.Rows[0])
	assert.Equal(t, 7.0, tab.Rows[1]["value"])
	assert.Equal(t, []any{12.5, 7.0}, tab.Column("value"))
}

func TestRead_Delimiter(t *testing.T) {
	tab, err := Read(strings.NewReader("a;b\n1;x\n"), Options{Delimiter: ';', Types: map[string]ColType{"a": TypeInt}})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, tab.Rows[0])
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		opts    Options
		wantErr string
	}{
		{"empty", "", Options{}, "header line is required"},
		{"duplicate column", "a,a\n1,2\n", Options{}, `duplicate column "a"`},
		{"unknown typed column", "a\n1\n", Options{Types: map[string]ColType{"b": TypeInt}}, `unknown column "b"`},
		{"bad int", "a\n1\nx\n", Options{Types: map[string]ColType{"a": TypeInt}}, `line 3, column "a"`},
		{"ragged", "a,b\n1\n", Options{}, "failed to read CSV"},
		{"bad delimiter", "a\n", Options{Delimiter: '\n'}, "invalid delimiter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in), tt.opts)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTable_Namespaces(t *testing.T) {
	tab, err := Read(strings.NewReader("name,value\nann,1\nbob,2\n"), Options{Types: map[string]ColType{"value": TypeInt}})
	require.NoError(t, err)

	ns := tab.Namespaces("cols")

	require.Len(t, ns, 2)
	assert.Equal(t, "bob", ns[1]["name"])
	cols, ok := ns[0]["cols"].(map[string][]any)
	require.True(t, ok)
	assert.Equal(t, []any{1, 2}, cols["value"])
	assert.Equal(t, []any{"ann", "bob"}, cols["name"])
	_, hasCols := tab.Rows[0]["cols"]
	assert.False(t, hasCols)
}

func TestTable_NamespacesNameClash(t *testing.T) {
	tab, err := Read(strings.NewReader("cols,name\nc1,ann\n"), Options{})
	require.NoError(t, err)

	ns := tab.Namespaces("cols")

	assert.Equal(t, "c1", ns[0]["cols"])
}
