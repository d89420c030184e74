package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang/snappy"
	"golang.org/x/sync/singleflight"

	"uidai-insights/internal/logging"
	"uidai-insights/internal/metrics"
)

// Memo loads values through a Store. Concurrent loads of one key share a single call.
type Memo struct {
	store Store
	group singleflight.Group
}

func NewMemo(store Store) *Memo {
	return &Memo{store: store}
}

// Load fills dst, a pointer, with the value cached under key. On a miss it runs
// fn, stores its result for ttl, and decodes that result into dst. Store errors
// are logged and treated as misses.
//
// fn runs on a context detached from ctx cancellation. A cancelled caller
// returns ctx.Err() and the load carries on for the others sharing it.
func (m *Memo) Load(ctx context.Context, key Key, ttl time.Duration, dst interface{}, fn func(ctx context.Context) (interface{}, error)) error {
	k := key.String()

	data, ok, err := m.store.Get(ctx, k)
	if err != nil {
		logging.Warn().Err(err).Str("key", k).Msg("cache read failed")
	}
	if ok {
		if err := decode(data, dst); err == nil {
			metrics.RecordCacheLookup(key.Namespace, true)
			return nil
		}
		logging.Warn().Str("key", k).Msg("discarding undecodable cache entry")
	}
	metrics.RecordCacheLookup(key.Namespace, false)

	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(k, func() (interface{}, error) {
		value, err := fn(loadCtx)
		if err != nil {
			return nil, err
		}
		payload, err := encode(value)
		if err != nil {
			return nil, err
		}
		if err := m.store.Set(loadCtx, k, payload, ttl); err != nil {
			logging.Warn().Err(err).Str("key", k).Msg("cache write failed")
		}
		return payload, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.Err != nil {
		return res.Err
	}
	if res.Shared {
		logging.Debug().Str("key", k).Msg("shared in-flight load")
	}
	return decode(res.Val.([]byte), dst)
}

func encode(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache value: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

func decode(data []byte, dst interface{}) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("failed to decompress cache value: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}
	return nil
}
