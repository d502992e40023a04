package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in one Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS uses the credentials file when given, otherwise the default
// application credentials.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Backend() string { return "gcs" }

func (g *GCS) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(cleanKey(key))
}

func (g *GCS) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	w := g.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	r, err := g.object(key).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	_, err := g.object(key).Attrs(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	return g.query(ctx, &storage.Query{Prefix: cleanKey(prefix)}, func(attrs *storage.ObjectAttrs) string {
		return attrs.Name
	})
}

func (g *GCS) Folders(ctx context.Context, prefix string) ([]string, error) {
	return g.query(ctx, &storage.Query{Prefix: folderPrefix(prefix), Delimiter: "/"}, func(attrs *storage.ObjectAttrs) string {
		return attrs.Prefix
	})
}

// query collects the non-empty values pick returns for each result.
func (g *GCS) query(ctx context.Context, q *storage.Query, pick func(*storage.ObjectAttrs) string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	it := g.client.Bucket(g.bucket).Objects(ctx, q)
	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if v := pick(attrs); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	err := g.object(key).Delete(ctx)
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	return err
}
