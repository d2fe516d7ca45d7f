package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_DefineAndLookup(t *testing.T) {
	table := NewTable()

	require.NoError(t, table.Define("KB_DISPLAY_HOOKS", true))
	assert.True(t, table.Defined("KB_DISPLAY_HOOKS"))
	assert.False(t, table.Defined("KB_FORCE_HIDE"))

	v, ok := table.Lookup("KB_DISPLAY_HOOKS")
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestTable_RedefineKeepsOriginal(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Define("SITE_NAME", "first"))

	err := table.Define("SITE_NAME", "second")
	assert.Error(t, err)

	v, _ := table.Lookup("SITE_NAME")
	assert.Equal(t, "first", v)
}

func TestTable_EmptyName(t *testing.T) {
	assert.Error(t, NewTable().Define("", 1))
}

func TestTable_Sorted(t *testing.T) {
	table := FromMap(map[string]any{"zed": 3, "ALPHA": 1, "Middle": 2})

	assert.Equal(t, []Constant{
		{Name: "ALPHA", Value: 1},
		{Name: "MIDDLE", Value: 2},
		{Name: "ZED", Value: 3},
	}, table.Sorted())
	assert.Equal(t, 3, table.Len())
}

func TestTable_NilSafe(t *testing.T) {
	var table *Table
	assert.False(t, table.Defined("X"))
	assert.Nil(t, table.Sorted())
	assert.Equal(t, 0, table.Len())
}
