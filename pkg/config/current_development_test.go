//go:build !production

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentIsDevelopmentByDefault(t *testing.T) {
	assert.Equal(t, Development(), Current())
	assert.Equal(t, "http://127.0.0.1:5000", Current().APIServerURL)
}
