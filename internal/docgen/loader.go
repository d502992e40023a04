package docgen

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/docx"

	"github.com/spf13/afero"
)

const (
	// TemplateEnvVar names an explicit template path.
	TemplateEnvVar = "SERVICE_DESC_TEMPLATE_PATH"
	// DefaultTemplateName is looked up in the templates directory.
	DefaultTemplateName = "service_description_template.docx"
)

// Loader resolves and opens the service description template.
type Loader struct {
	fs     afero.Fs
	cfg    config.TemplateConfig
	getenv func(string) string
	log    logger.Logger
}

func NewLoader(fs afero.Fs, cfg config.TemplateConfig, log logger.Logger) *Loader {
	return &Loader{fs: fs, cfg: cfg, getenv: os.Getenv, log: log}
}

// Resolve returns the first existing template path in resolution order:
// override, environment, configured path, first .docx of the docs
// directory, then the templates directory.
func (l *Loader) Resolve(override string) (string, error) {
	var tried []string
	try := func(path string) bool {
		if path == "" {
			return false
		}
		tried = append(tried, path)
		info, err := l.fs.Stat(path)
		return err == nil && !info.IsDir()
	}

	for _, candidate := range []string{override, l.getenv(TemplateEnvVar), l.cfg.Path} {
		if try(candidate) {
			return candidate, nil
		}
	}

	if l.cfg.DocsDir != "" {
		tried = append(tried, filepath.Join(l.cfg.DocsDir, "*.docx"))
		if path := l.firstDocx(l.cfg.DocsDir); path != "" {
			return path, nil
		}
	}

	if l.cfg.TemplatesDir != "" && try(filepath.Join(l.cfg.TemplatesDir, DefaultTemplateName)) {
		return filepath.Join(l.cfg.TemplatesDir, DefaultTemplateName), nil
	}

	return "", errors.NewTemplateNotFoundError(tried)
}

func (l *Loader) firstDocx(dir string) string {
	entries, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return ""
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		name := e.Name()
		// Word lock files look like "~$name.docx".
		if e.IsDir() || strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".docx") {
			continue
		}
		return filepath.Join(dir, name)
	}
	return ""
}

// Load resolves the template and parses a fresh tree from it. The source
// file is only read.
func (l *Loader) Load(override string) (*docx.Document, string, error) {
	path, err := l.Resolve(override)
	if err != nil {
		return nil, "", err
	}

	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, path, errors.NewTemplateMalformedError(path, err)
	}
	doc, err := docx.Open(data)
	if err != nil {
		return nil, path, errors.NewTemplateMalformedError(path, err)
	}

	l.log.Debug("Template loaded", map[string]interface{}{
		"path":  path,
		"bytes": len(data),
	})
	return doc, path, nil
}
