package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "Member", "Kind", "Index")
	table.AddRow("CustomerID", "property", "0")
	table.AddRow("Id", "property", "1")
	table.AddRow("Customer", "navigation", "0", "ignored")

	assert.Equal(t, 3, table.Len())
	table.Render()

	want := "" +
		"Member      Kind        Index\n" +
		"──────────  ──────────  ─────\n" +
		"CustomerID  property    0\n" +
		"Id          property    1\n" +
		"Customer    navigation  0\n"
	assert.Equal(t, want, buf.String())
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())

	buf.Reset()
	NewTable(&buf, true, "Name").Render()
	assert.Equal(t, "Name\n────\n", buf.String())
}

func TestTable_Color(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, false, "Name")
	table.AddRow("order")
	table.Render()
	assert.Contains(t, buf.String(), "order\n")
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Properties", "5")
	kv.AddRow("Shadow", "1")
	kv.Render()

	assert.Equal(t, "Properties: 5\nShadow:     1\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "order", true)
	assert.Equal(t, "order\n─────\n", buf.String())
}
