package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type gcsBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

func newGCSBackend(ctx context.Context, cfg GCSConfig) (*gcsBackend, error) {
	var opts []option.ClientOption
	if cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Credentials))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &gcsBackend{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

func (g *gcsBackend) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.prefix + key)
}

func (g *gcsBackend) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	w := g.object(key).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close writer: %v\n", closeErr)
		}
		return fmt.Errorf("failed to write artifact data: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close artifact writer: %w", err)
	}

	return nil
}

func (g *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := g.object(key).NewReader(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil, fmt.Errorf("artifact not found: %s", key)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return reader, nil
}

func (g *gcsBackend) Delete(ctx context.Context, key string) error {
	if err := g.object(key).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	return nil
}

func (g *gcsBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return false, nil
		}
		return false, fmt.Errorf("failed to check artifact existence: %w", err)
	}

	return true, nil
}

func (g *gcsBackend) List(ctx context.Context) ([]string, error) {
	bucket := g.client.Bucket(g.bucket)

	var keys []string
	it := bucket.Objects(ctx, &storage.Query{Prefix: g.prefix})

	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		keys = append(keys, strings.TrimPrefix(attrs.Name, g.prefix))
	}

	return keys, nil
}

func (g *gcsBackend) Close() error {
	return g.client.Close()
}
