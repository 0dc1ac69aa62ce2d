// Package config collects the small environment-variable-with-default
// helpers every cmd/ entry point uses to resolve settings that pflag
// didn't already provide, generalizing the getenv/mustGetenv pair
// duplicated in the teacher's cmd/coordinator/main.go and cmd/node/main.go
// into one shared package.
package config

import (
	"os"
	"strconv"
)

// Getenv returns the environment variable k, or def if it is unset or
// empty.
func Getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// GetenvInt returns the environment variable k parsed as an int, or def
// if it is unset, empty, or not a valid integer.
func GetenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// MustGetenv returns the environment variable k, calling fatal with a
// descriptive message if it is unset or empty. fatal is normally
// log.Fatalf, injected so tests can intercept it instead of exiting the
// process.
func MustGetenv(k string, fatal func(format string, args ...any)) string {
	v := os.Getenv(k)
	if v == "" {
		fatal("%s environment variable is required", k)
	}
	return v
}
