package agent

import (
	"context"
	"errors"
	"strings"
)

var errMissingKey = errors.New("session key not found in context")

// Store is a namespaced view of a Cache. Operations address the entry named by the
// session key in the context.
type Store[S any] struct {
	core      Cache[S]
	namespace string
	keyFn     func(ctx context.Context) (string, bool)
}

func NewStore[S any](core Cache[S], namespace string, keyFn func(ctx context.Context) (string, bool)) Store[S] {
	return Store[S]{
		core:      core,
		namespace: namespace,
		keyFn:     keyFn,
	}
}

func (c Store[S]) prefix() string {
	return c.namespace + ":"
}

func (c Store[S]) resolve(ctx context.Context) (string, error) {
	if key, ok := c.keyFn(ctx); ok && key != "" {
		return c.prefix() + key, nil
	}
	return "", errMissingKey
}

func (c Store[S]) Set(ctx context.Context, val S) error {
	key, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	return c.core.Set(ctx, key, val)
}

func (c Store[S]) Get(ctx context.Context) (val S, ok bool, err error) {
	key, err := c.resolve(ctx)
	if err != nil {
		return val, false, err
	}
	return c.core.Get(ctx, key)
}

func (c Store[S]) Del(ctx context.Context) error {
	key, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	return c.core.Del(ctx, key)
}

// Keys lists the session keys stored in this namespace.
func (c Store[S]) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.core.Keys(ctx, c.prefix())
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, c.prefix())
	}
	return keys, nil
}
