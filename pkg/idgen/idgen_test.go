package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_ReturnsValidV7(t *testing.T) {
	id := New()
	assert.Equal(t, "7", id.Version().String())
}

func TestNew_IsMonotonicallySortable(t *testing.T) {
	a := New()
	b := New()
	c := New()

	assert.LessOrEqual(t, a.String(), b.String())
	assert.LessOrEqual(t, b.String(), c.String())
}

func TestNewString(t *testing.T) {
	s := NewString()
	assert.True(t, IsValid(s))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(NewString()))
	assert.False(t, IsValid("not-a-uuid"))
	assert.False(t, IsValid(""))
}

func TestParse(t *testing.T) {
	id := New()

	parsed, err := Parse(id.String())
	assert.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
}
