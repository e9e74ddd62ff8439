package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOptimalPoolSize(t *testing.T) {
	n := GetOptimalPoolSize()
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 32)
	assert.Equal(t, 3, GetOptimalPoolSizeWithOverride(3))
	assert.Equal(t, n, GetOptimalPoolSizeWithOverride(0))
}
