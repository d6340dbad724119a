package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSBlobStore keeps blobs in a JetStream key-value bucket.
type NATSBlobStore struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSBlobStore connects to url and creates the bucket if needed.
func NewNATSBlobStore(ctx context.Context, url, bucket string) (*NATSBlobStore, error) {
	conn, err := nats.Connect(url, nats.Name("habittracker"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "habit tracker collections",
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}

	return &NATSBlobStore{conn: conn, kv: kv}, nil
}

func (s *NATSBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value(), true, nil
}

func (s *NATSBlobStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *NATSBlobStore) Remove(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSBlobStore) Close() error {
	return s.conn.Drain()
}
