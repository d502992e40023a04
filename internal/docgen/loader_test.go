package docgen

import (
	"testing"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/docx/docxtest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderResolve(t *testing.T) {
	template := docxtest.New().Heading(1, "T").Build()

	tests := []struct {
		name     string
		files    []string
		env      string
		cfg      config.TemplateConfig
		override string
		want     string
	}{
		{
			name:     "override wins",
			files:    []string{"/o.docx", "/env.docx", "/templates/" + DefaultTemplateName},
			env:      "/env.docx",
			cfg:      config.TemplateConfig{TemplatesDir: "/templates"},
			override: "/o.docx",
			want:     "/o.docx",
		},
		{
			name:  "environment before configured path",
			files: []string{"/env.docx", "/cfg.docx"},
			env:   "/env.docx",
			cfg:   config.TemplateConfig{Path: "/cfg.docx"},
			want:  "/env.docx",
		},
		{
			name:     "missing override falls through",
			files:    []string{"/cfg.docx"},
			cfg:      config.TemplateConfig{Path: "/cfg.docx"},
			override: "/missing.docx",
			want:     "/cfg.docx",
		},
		{
			name:  "first docx in docs directory",
			files: []string{"/docs/~$lock.docx", "/docs/b.docx", "/docs/a.DOCX", "/docs/notes.txt", "/templates/" + DefaultTemplateName},
			cfg:   config.TemplateConfig{DocsDir: "/docs", TemplatesDir: "/templates"},
			want:  "/docs/a.DOCX",
		},
		{
			name:  "templates directory last",
			files: []string{"/docs/readme.md", "/templates/" + DefaultTemplateName},
			cfg:   config.TemplateConfig{DocsDir: "/docs", TemplatesDir: "/templates"},
			want:  "/templates/" + DefaultTemplateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for _, f := range tt.files {
				require.NoError(t, afero.WriteFile(fs, f, template, 0o644))
			}
			loader := NewLoader(fs, tt.cfg, logger.NewTestLogger(t))
			loader.getenv = func(key string) string {
				if key == TemplateEnvVar {
					return tt.env
				}
				return ""
			}

			got, err := loader.Resolve(tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoaderResolve_NotFound(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/templates/"+DefaultTemplateName, 0o755))

	loader := NewLoader(fs, config.TemplateConfig{Path: "/cfg.docx", TemplatesDir: "/templates"}, logger.NewTestLogger(t))
	loader.getenv = func(string) string { return "" }

	_, err := loader.Resolve("")
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeTemplateNotFound, stdErr.Code)
	assert.Contains(t, stdErr.Details, "/cfg.docx")
	assert.Contains(t, stdErr.Details, "/templates/"+DefaultTemplateName)
}

func TestLoaderLoad_DoesNotModifySource(t *testing.T) {
	template := docxtest.New().Heading(1, "ENTER SERVICE NAME HERE").Build()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/t.docx", template, 0o644))

	loader := NewLoader(fs, config.TemplateConfig{Path: "/t.docx"}, logger.NewTestLogger(t))
	loader.getenv = func(string) string { return "" }

	doc, path, err := loader.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/t.docx", path)
	_, err = SetTitle(doc, "Changed", DefaultOptions())
	require.NoError(t, err)

	onDisk, err := afero.ReadFile(fs, "/t.docx")
	require.NoError(t, err)
	assert.Equal(t, template, onDisk)
}
