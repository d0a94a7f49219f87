package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type body struct {
	Notes Field[string] `json:"notes"`
	Taken Field[bool]   `json:"taken"`
}

func TestField_TriState(t *testing.T) {
	var b body
	require.NoError(t, json.Unmarshal([]byte(`{"notes":null}`), &b))
	assert.True(t, b.Notes.Set)
	assert.True(t, b.Notes.Null)
	assert.False(t, b.Taken.Set)

	b = body{}
	require.NoError(t, json.Unmarshal([]byte(`{"notes":"ok","taken":false}`), &b))
	assert.True(t, b.Notes.HasValue())
	assert.Equal(t, "ok", b.Notes.Value)
	assert.True(t, b.Taken.HasValue())
	assert.False(t, b.Taken.Value)
}

func TestField_ApplyPtr(t *testing.T) {
	existing := "keep"
	dst := &existing

	Field[string]{}.ApplyPtr(&dst)
	require.NotNil(t, dst)
	assert.Equal(t, "keep", *dst)

	Of("new").ApplyPtr(&dst)
	assert.Equal(t, "new", *dst)

	Clear[string]().ApplyPtr(&dst)
	assert.Nil(t, dst)
}

func TestField_WrongType(t *testing.T) {
	var b body
	assert.Error(t, json.Unmarshal([]byte(`{"taken":"yes"}`), &b))
}
