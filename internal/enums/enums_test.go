package enums

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodValues(t *testing.T) {
	assert.Equal(t, "GET", GET.String())
	assert.Equal(t, "POST", POST.String())
	assert.Equal(t, "DELETE", DELETE.String())
	assert.Equal(t, "PUT", PUT.String())
	assert.Equal(t, "PATCH", PATCH.String())
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("patch")
	require.NoError(t, err)
	assert.Equal(t, PATCH, m)

	_, err = ParseMethod("TRACE")
	assert.Error(t, err)
}

func TestEnumLookup(t *testing.T) {
	e := New("Status", "OPTION1", "1", "OPTION2", "2")

	m, err := e.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, "OPTION1", m.Name)

	m, err = e.Lookup("2")
	require.NoError(t, err)
	assert.Equal(t, "OPTION2", m.Name)

	_, err = e.Lookup(3)
	assert.True(t, errors.Is(err, ErrUnknownMember))
}

func TestEnumChoices(t *testing.T) {
	e := New("Status", "ON", "on", "OFF", "off")
	assert.Equal(t, []Choice{{Label: "ON", Value: "on"}, {Label: "OFF", Value: "off"}}, e.Choices())

	_, err := e.ByName("MAYBE")
	assert.ErrorIs(t, err, ErrUnknownMember)
}
