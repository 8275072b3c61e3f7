package kv

import "context"

type (
	// Store is the persistence port the overlay is given by its host:
	// async get/set by string key, values round-tripping losslessly.
	Store interface {
		Get(ctx context.Context, key string) (value string, ok bool, err error)
		Set(ctx context.Context, key string, value string) error
	}
)
