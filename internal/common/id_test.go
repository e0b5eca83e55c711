package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTempID(t *testing.T) {
	a := NewTempID()
	b := NewTempID()
	require.NotEqual(t, a, b)
	assert.True(t, IsTempID(a))
	assert.True(t, IsTempID(b))
}

func TestIsTempID(t *testing.T) {
	assert.True(t, IsTempID("tmp-abc"))
	assert.False(t, IsTempID("cv-001"))
	assert.False(t, IsTempID(""))
	assert.False(t, IsTempID(NewPermID()))
}
