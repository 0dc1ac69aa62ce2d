package shard

import "errors"

// Sentinel errors returned by Index operations. Callers compare against
// these with errors.Is; the worker layer maps them onto the wire's
// INVALID response (§7).
var (
	ErrInvalidRecord   = errors.New("shard: invalid record")
	ErrDuplicateRecord = errors.New("shard: duplicate record id")
	ErrRecordNotFound  = errors.New("shard: record not found")
	ErrUnknownCountry  = errors.New("shard: unknown country")
	ErrUnknownDisease  = errors.New("shard: unknown disease")
	ErrInvalidInterval = errors.New("shard: invalid date interval")
)
