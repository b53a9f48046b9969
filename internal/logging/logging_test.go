package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRespectsVerbosity(t *testing.T) {
	var quiet bytes.Buffer
	l := New(&quiet, false)
	l.Debug().Msg("hidden")
	l.Info().Str("file", "a.py").Msg("shown")

	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "shown")
	assert.Contains(t, quiet.String(), "a.py")

	var loud bytes.Buffer
	l = New(&loud, true)
	l.Debug().Msg("visible")
	assert.Contains(t, loud.String(), "visible")
}
