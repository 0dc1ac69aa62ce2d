package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrokerAddr(t *testing.T) {
	assert.Equal(t, "10.0.0.1:9000", brokerAddr("10.0.0.1", 9000))
}

func TestDefaultFlagsRegistered(t *testing.T) {
	for _, name := range []string{"workers", "buffer-size", "server-ip", "server-port", "input-dir", "worker-bin"} {
		assert.NotNilf(t, rootCmd.Flags().Lookup(name), "flag %q not registered", name)
	}
}
