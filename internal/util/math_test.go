package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	// GIVEN
	a := 0.0
	b := 100.0
	c := 50.0

	// WHEN
	result := Ratio(c, a, b)

	// THEN
	assert.Equal(t, 0.5, result)
}

func TestCoerce(t *testing.T) {
	assert.Equal(t, 0, Coerce(-5, 0, 255))
	assert.Equal(t, 255, Coerce(300, 0, 255))
	assert.Equal(t, 42, Coerce(42, 0, 255))
	assert.Equal(t, 100.0, Coerce(120.5, 0.0, 100.0))
}

func TestCoerceUnordered(t *testing.T) {
	assert.Equal(t, 100, CoerceUnordered(50, 200, 100))
	assert.Equal(t, 200, CoerceUnordered(250, 200, 100))
	assert.Equal(t, 150, CoerceUnordered(150, 200, 100))
}

func TestRoundToInt(t *testing.T) {
	assert.Equal(t, 3, RoundToInt(2.5))
	assert.Equal(t, 2, RoundToInt(2.49))
	assert.Equal(t, -3, RoundToInt(-2.5))
}
