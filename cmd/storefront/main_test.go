package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_ReportsMissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	err := start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestStart_ReportsBadLogLevel(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "chatty")

	err := start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build logger")
}
