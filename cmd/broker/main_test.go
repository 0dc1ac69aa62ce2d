package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultFlagsRegistered(t *testing.T) {
	for _, name := range []string{"query-port", "stats-port", "workers", "buffer-size", "metrics-addr"} {
		assert.NotNilf(t, rootCmd.Flags().Lookup(name), "flag %q not registered", name)
	}
}
