package logger

import (
	"testing"

	"github.com/cenkalti/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, log.DEBUG, l)

	l, err = ParseLevel(" Warning ")
	require.NoError(t, err)
	assert.Equal(t, log.WARNING, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
