// Package kvstore keeps records and key tables in NATS JetStream key-value
// buckets, one for notations and one for key codes.
package kvstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/sha1n/iconclass-mcp/internal/store"
)

// DefaultBucketPrefix names the buckets when no prefix is configured.
const DefaultBucketPrefix = "iconclass"

// bucket is the subset of jetstream.KeyValue used by the store.
type bucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error)
}

// Store is a record store and key table over two KV buckets.
type Store struct {
	notations bucket
	keys      bucket
	conn      *nats.Conn
}

var _ store.Backend = (*Store)(nil)
var _ store.Importer = (*Store)(nil)

// Connect opens (or creates) the "<prefix>_notations" and "<prefix>_keys"
// buckets on the server at url.
func Connect(ctx context.Context, url, prefix string) (*Store, error) {
	if prefix == "" {
		prefix = DefaultBucketPrefix
	}

	nc, err := nats.Connect(url, nats.Name("iconclass-mcp"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open jetstream: %w", err)
	}

	notations, err := openBucket(ctx, js, prefix+"_notations")
	if err != nil {
		nc.Close()
		return nil, err
	}
	keys, err := openBucket(ctx, js, prefix+"_keys")
	if err != nil {
		nc.Close()
		return nil, err
	}

	s := newStore(notations, keys)
	s.conn = nc
	return s, nil
}

func newStore(notations, keys bucket) *Store {
	return &Store{notations: notations, keys: keys}
}

func openBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open bucket %s: %w", name, err)
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "ICONCLASS " + name,
	})
	if errors.Is(err, jetstream.ErrBucketExists) {
		// another instance created it first
		return js.KeyValue(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", name, err)
	}
	return kv, nil
}

// encodeKey maps a notation or key code onto the characters KV keys allow.
func encodeKey(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func get[T any](ctx context.Context, b bucket, key string) (T, error) {
	var v T
	entry, err := b.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return v, store.ErrNotFound
	}
	if err != nil {
		return v, fmt.Errorf("kv get %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Value(), &v); err != nil {
		return v, fmt.Errorf("corrupt kv entry %s: %w", key, err)
	}
	return v, nil
}

// Record returns the stored record for notation.
func (s *Store) Record(ctx context.Context, notation string) (*domain.StoredRecord, error) {
	rec, err := get[*domain.StoredRecord](ctx, s.notations, notation)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

// Keys returns every suffix entry of a key code.
func (s *Store) Keys(ctx context.Context, code string) (domain.KeySet, error) {
	ks, err := get[domain.KeySet](ctx, s.keys, code)
	if err != nil {
		return nil, err
	}
	for suffix, e := range ks {
		if e.Text == nil {
			e.Text = map[string]string{}
		}
		if e.Keywords == nil {
			e.Keywords = map[string][]string{}
		}
		ks[suffix] = e
	}
	return ks, nil
}

// Import writes every record and key set of ds, then deletes entries that
// are not part of ds. Readers may observe a mix of old and new content
// while an import is running.
func (s *Store) Import(ctx context.Context, ds *store.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	written := make(map[string]struct{}, len(ds.Records))
	for n, rec := range ds.Records {
		if err := put(ctx, s.notations, n, rec); err != nil {
			return err
		}
		written[encodeKey(n)] = struct{}{}
	}
	if err := prune(ctx, s.notations, written); err != nil {
		return err
	}

	written = make(map[string]struct{}, len(ds.Keys))
	for code, ks := range ds.Keys {
		if err := put(ctx, s.keys, code, ks); err != nil {
			return err
		}
		written[encodeKey(code)] = struct{}{}
	}
	return prune(ctx, s.keys, written)
}

func put(ctx context.Context, b bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if _, err := b.Put(ctx, encodeKey(key), data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func prune(ctx context.Context, b bucket, keep map[string]struct{}) error {
	lister, err := b.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list kv keys: %w", err)
	}

	var stale []string
	for k := range lister.Keys() {
		if _, ok := keep[k]; !ok {
			stale = append(stale, k)
		}
	}
	if err := lister.Stop(); err != nil && !errors.Is(err, jetstream.ErrNoKeysFound) {
		return fmt.Errorf("failed to list kv keys: %w", err)
	}

	for _, k := range stale {
		if err := b.Delete(ctx, k); err != nil {
			return fmt.Errorf("kv delete %s: %w", k, err)
		}
	}
	return nil
}

// Close drains the NATS connection, if the store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
