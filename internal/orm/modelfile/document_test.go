package modelfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name: "minimal",
			input: `
entities:
  - name: audit
    properties:
      - name: Id
        type: int64
    key: [Id]
`,
		},
		{name: "empty", input: "", wantErr: "empty document"},
		{name: "unknown key", input: "entites: []\n", wantErr: "field entites not found"},
		{name: "no entities", input: "access_mode: field\n", wantErr: "entities is required"},
		{
			name:    "entity without name",
			input:   "entities:\n  - key: [Id]\n",
			wantErr: "entities[0].name is required",
		},
		{
			name:    "unknown type",
			input:   "entities:\n  - name: a\n    properties:\n      - name: Price\n        type: decimal\n",
			wantErr: `entities[0].properties[0].type: unknown type "decimal"`,
		},
		{
			name:    "unknown access mode",
			input:   "access_mode: fields\nentities:\n  - name: a\n",
			wantErr: `access_mode: unknown access mode "fields"`,
		},
		{
			name:    "unknown value generation",
			input:   "entities:\n  - name: a\n    properties:\n      - name: Id\n        value_generated: always\n",
			wantErr: "entities[0].properties[0].value_generated must be one of",
		},
		{
			name:    "empty alternate key",
			input:   "entities:\n  - name: a\n    keys:\n      - []\n",
			wantErr: "entities[0].keys[0] must have at least 1 entries",
		},
		{
			name:    "foreign key without principal",
			input:   "entities:\n  - name: a\n    foreign_keys:\n      - properties: [BId]\n",
			wantErr: "entities[0].foreign_keys[0].principal is required",
		},
		{
			name:    "negative max length",
			input:   "entities:\n  - name: a\n    properties:\n      - name: Note\n        max_length: -1\n",
			wantErr: "entities[0].properties[0].max_length",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDocument)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, doc)
				return
			}
			require.NoError(t, err)
			require.Len(t, doc.Entities, 1)
			assert.Equal(t, "audit", doc.Entities[0].Name)
			assert.Equal(t, []string{"Id"}, doc.Entities[0].Key)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yml")
	require.NoError(t, os.WriteFile(path, []byte(shopDocument), 0644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 3)
	assert.Equal(t, "field_during_construction", doc.AccessMode)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("entities: {}\n"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidDocument)
	assert.Contains(t, err.Error(), bad)
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		want reflect.Type
	}{
		{"int", reflect.TypeOf(0)},
		{"int?", reflect.TypeOf((*int)(nil))},
		{" string ", reflect.TypeOf("")},
		{"uuid", reflect.TypeOf(uuid.UUID{})},
		{"time?", reflect.TypeOf((*time.Time)(nil))},
		{"bytes", reflect.TypeOf([]byte(nil))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TypeOf(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := TypeOf("decimal")
	assert.False(t, ok)
	_, ok = TypeOf("")
	assert.False(t, ok)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "int64", TypeName(reflect.TypeOf(int64(0))))
	assert.Equal(t, "uuid?", TypeName(reflect.TypeOf((*uuid.UUID)(nil))))
	assert.Equal(t, "map[string]int", TypeName(reflect.TypeOf(map[string]int{})))
	assert.Contains(t, TypeNames(), "duration")
	assert.IsIncreasing(t, TypeNames())
}
