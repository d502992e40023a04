// Package storage persists generated documents and their folder metadata
// behind one interface with local, S3, Azure Blob, GCS and SharePoint
// backends.
package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"strings"
	"time"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/afero"
)

// ErrNotFound is returned by Get and Delete for a missing key.
var ErrNotFound = stderrors.New("object not found")

// Store is a flat key space where "/" separates folders.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key under prefix, recursively.
	List(ctx context.Context, prefix string) ([]string, error)
	// Folders returns the immediate child folders of prefix, each ending
	// with "/".
	Folders(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Backend() string
}

const (
	ContentTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain; charset=utf-8"
)

// ContentTypeFor guesses the content type from the key extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".docx":
		return ContentTypeDocx
	case ".pdf":
		return ContentTypePDF
	case ".txt":
		return ContentTypeText
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// New builds the configured backend wrapped with metrics and logging.
// awsCfg is only used by the S3 backend.
func New(ctx context.Context, cfg config.StorageConfig, awsCfg aws.Config, log logger.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case config.StorageBackendLocal, "":
		root := cfg.Local.Root
		if root == "" {
			root = "./output"
		}
		store = NewLocal(afero.NewOsFs(), root)
	case config.StorageBackendS3:
		store, err = NewS3FromConfig(awsCfg, cfg)
	case config.StorageBackendAzure:
		store, err = NewAzure(cfg.Azure.ConnectionString, cfg.Azure.Container)
	case config.StorageBackendGCS:
		store, err = NewGCS(ctx, cfg.GCS.Bucket, cfg.GCS.CredentialsFile)
	case config.StorageBackendSharePoint:
		store, err = NewSharePointFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s storage: %w", cfg.Backend, err)
	}
	return Instrument(store, log), nil
}

// operationTimeout bounds a single backend call.
const operationTimeout = 2 * time.Minute

func cleanKey(key string) string {
	return strings.TrimLeft(key, "/")
}

func folderPrefix(prefix string) string {
	prefix = cleanKey(prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
