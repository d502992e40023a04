package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Local stores objects as files below root. Writes go through a temp file
// and a rename so readers never see a partial document.
type Local struct {
	fs   afero.Fs
	root string
}

func NewLocal(fs afero.Fs, root string) *Local {
	return &Local{fs: fs, root: root}
}

func (l *Local) Backend() string { return "local" }

func (l *Local) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(cleanKey(key)))
}

func (l *Local) Put(_ context.Context, key string, data []byte, _ string) error {
	return writeFileAtomic(l.fs, l.path(key), data)
}

func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, l.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	info, err := l.fs.Stat(l.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	prefix = cleanKey(prefix)
	var keys []string
	err := afero.Walk(l.fs, l.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

func (l *Local) Folders(_ context.Context, prefix string) ([]string, error) {
	prefix = folderPrefix(prefix)
	entries, err := afero.ReadDir(l.fs, l.path(prefix))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, prefix+e.Name()+"/")
		}
	}
	return folders, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	err := l.fs.Remove(l.path(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}
