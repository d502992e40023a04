package storage

import (
	"context"
	stderrors "errors"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/common/metrics"
)

// instrumented records storage_operations_total for every call and maps
// backend failures to StandardErrors.
type instrumented struct {
	next Store
	log  logger.Logger
}

// Instrument wraps store with metrics, logging and error mapping.
func Instrument(store Store, log logger.Logger) Store {
	return &instrumented{
		next: store,
		log:  log.WithFields(map[string]interface{}{"backend": store.Backend()}),
	}
}

func (s *instrumented) Backend() string {
	return s.next.Backend()
}

func (s *instrumented) observe(operation, key string, err error) {
	status := metrics.Status(err)
	if stderrors.Is(err, ErrNotFound) {
		status = "not_found"
	}
	metrics.StorageOperations.WithLabelValues(s.next.Backend(), operation, status).Inc()
	if err != nil && status != "not_found" {
		s.log.Error("Storage operation failed", map[string]interface{}{
			"operation": operation,
			"key":       key,
			"error":     err.Error(),
		})
	}
}

func (s *instrumented) Put(ctx context.Context, key string, data []byte, contentType string) error {
	err := s.next.Put(ctx, key, data, contentType)
	s.observe("put", key, err)
	if err != nil {
		return errors.NewStorageWriteFailedError(key, err)
	}
	s.log.Debug("Object stored", map[string]interface{}{"key": key, "bytes": len(data)})
	return nil
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.next.Get(ctx, key)
	s.observe("get", key, err)
	switch {
	case stderrors.Is(err, ErrNotFound):
		return nil, errors.NewDocumentNotFoundError(key)
	case err != nil:
		return nil, errors.NewStorageReadFailedError(key, err)
	}
	return data, nil
}

func (s *instrumented) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.next.Exists(ctx, key)
	s.observe("exists", key, err)
	if err != nil {
		return false, errors.NewStorageReadFailedError(key, err)
	}
	return ok, nil
}

func (s *instrumented) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.next.List(ctx, prefix)
	s.observe("list", prefix, err)
	if err != nil {
		return nil, errors.NewStorageReadFailedError(prefix, err)
	}
	return keys, nil
}

func (s *instrumented) Folders(ctx context.Context, prefix string) ([]string, error) {
	folders, err := s.next.Folders(ctx, prefix)
	s.observe("folders", prefix, err)
	if err != nil {
		return nil, errors.NewStorageReadFailedError(prefix, err)
	}
	return folders, nil
}

// Delete treats a missing key as already deleted.
func (s *instrumented) Delete(ctx context.Context, key string) error {
	err := s.next.Delete(ctx, key)
	s.observe("delete", key, err)
	if err != nil && !stderrors.Is(err, ErrNotFound) {
		return errors.NewStorageDeleteFailedError(key, err)
	}
	return nil
}
