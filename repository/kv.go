package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contrastkit/contrastkit/cache"
	"github.com/contrastkit/contrastkit/domain"
)

func getJSON(ctx context.Context, store cache.Store, key string, out interface{}) error {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}

	return nil
}

func putJSON(ctx context.Context, store cache.Store, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	return store.Put(ctx, key, raw, ttl)
}

func exists(ctx context.Context, store cache.Store, key string) (bool, error) {
	_, err := store.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
