package storage

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceFolder = "GCloud 15/PA Services/Cloud Support Services LOT 3/My Service/"

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewLocal(fs, "/out")

	key := serviceFolder + "PA GC15 SERVICE DESC My Service.docx"
	require.NoError(t, store.Put(ctx, key, []byte("docx"), ContentTypeDocx))
	require.NoError(t, store.Put(ctx, serviceFolder+"OWNER Jane.txt", []byte("meta"), ContentTypeText))
	require.NoError(t, store.Put(ctx, "GCloud 15/PA Services/Cloud Support Services LOT 2/Other/x.docx", []byte("x"), ContentTypeDocx))

	t.Run("Get", func(t *testing.T) {
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("docx"), data)

		_, err = store.Get(ctx, "missing.docx")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists(ctx, serviceFolder)
		require.NoError(t, err)
		assert.False(t, ok, "folders are not objects")
	})

	t.Run("List", func(t *testing.T) {
		keys, err := store.List(ctx, serviceFolder)
		require.NoError(t, err)
		assert.Equal(t, []string{
			serviceFolder + "OWNER Jane.txt",
			serviceFolder + "PA GC15 SERVICE DESC My Service.docx",
		}, keys)
	})

	t.Run("Folders", func(t *testing.T) {
		folders, err := store.Folders(ctx, "GCloud 15/PA Services")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"GCloud 15/PA Services/Cloud Support Services LOT 2/",
			"GCloud 15/PA Services/Cloud Support Services LOT 3/",
		}, folders)

		folders, err = store.Folders(ctx, "GCloud 14/PA Services/")
		require.NoError(t, err)
		assert.Empty(t, folders)
	})

	t.Run("Overwrite leaves no temp files", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, []byte("v2"), ContentTypeDocx))
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), data)

		entries, err := afero.ReadDir(fs, "/out/"+strings.TrimSuffix(serviceFolder, "/"))
		require.NoError(t, err)
		for _, e := range entries {
			assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), e.Name())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound)
	})
}

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMockS3() *mockS3 {
	return &mockS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *mockS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(params.Key)] = data
	m.types[aws.ToString(params.Key)] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				p := prefix + rest[:i+1]
				if !seen[p] {
					seen[p] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (m *mockS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	client := newMockS3()
	store := NewS3(client, "gcloud-docs")

	key := serviceFolder + "PA GC15 SERVICE DESC My Service_draft.docx"
	require.NoError(t, store.Put(ctx, "/"+key, []byte("docx"), ContentTypeDocx))
	assert.Equal(t, ContentTypeDocx, client.types[key], "leading slash is stripped")

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("docx"), data)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "GCloud 15/PA Services/Cloud Support Services LOT 2/Other/a.docx", []byte("a"), ContentTypeDocx))

	folders, err := store.Folders(ctx, "GCloud 15/PA Services")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GCloud 15/PA Services/Cloud Support Services LOT 2/",
		"GCloud 15/PA Services/Cloud Support Services LOT 3/",
	}, folders)

	keys, err := store.List(ctx, serviceFolder)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound)
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(&types.NoSuchKey{}))
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.False(t, isS3NotFound(stderrors.New("access denied")))
}

// fakeGraph serves the drive endpoints used by the SharePoint store from
// an in-memory file map keyed by drive path.
type fakeGraph struct {
	mu       sync.Mutex
	files    map[string][]byte
	pageSize int
}

func (g *fakeGraph) isFolder(p string) bool {
	if p == "" {
		return true
	}
	for k := range g.files {
		if strings.HasPrefix(k, p+"/") {
			return true
		}
	}
	return false
}

func (g *fakeGraph) children(folder string) []map[string]interface{} {
	prefix := ""
	if folder != "" {
		prefix = folder + "/"
	}
	seen := map[string]bool{}
	var out []map[string]interface{}
	var keys []string
	for k := range g.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			if !seen[name] {
				seen[name] = true
				out = append(out, map[string]interface{}{"name": name, "folder": map[string]interface{}{}})
			}
			continue
		}
		out = append(out, map[string]interface{}{"name": rest, "file": map[string]interface{}{}})
	}
	return out
}

func (g *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()

	const drive = "/sites/site-1/drive/root"
	if !strings.HasPrefix(r.URL.Path, drive) {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, drive)

	var p, op string
	switch {
	case rest == "/children":
		op = "children"
	case strings.HasPrefix(rest, ":/"):
		p = strings.TrimPrefix(rest, ":/")
		switch {
		case strings.HasSuffix(p, ":/content"):
			p, op = strings.TrimSuffix(p, ":/content"), "content"
		case strings.HasSuffix(p, ":/children"):
			p, op = strings.TrimSuffix(p, ":/children"), "children"
		default:
			op = "item"
		}
	default:
		http.NotFound(w, r)
		return
	}

	switch {
	case op == "content" && r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		g.files[p] = data
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"name": p})
	case op == "content" && r.Method == http.MethodGet:
		data, ok := g.files[p]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	case op == "children":
		if !g.isFolder(p) {
			http.NotFound(w, r)
			return
		}
		items := g.children(p)
		page := map[string]interface{}{}
		start := 0
		if s := r.URL.Query().Get("skip"); s != "" {
			start, _ = strconv.Atoi(s)
		}
		end := len(items)
		if g.pageSize > 0 && start+g.pageSize < end {
			end = start + g.pageSize
			next := *r.URL
			next.Scheme, next.Host = "http", r.Host
			next.RawQuery = "skip=" + strconv.Itoa(end)
			page["@odata.nextLink"] = next.String()
		}
		page["value"] = items[start:end]
		_ = json.NewEncoder(w).Encode(page)
	case op == "item" && r.Method == http.MethodGet:
		switch {
		case g.files[p] != nil:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"name": p, "file": map[string]interface{}{}})
		case g.isFolder(p):
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"name": p, "folder": map[string]interface{}{}})
		default:
			http.NotFound(w, r)
		}
	case op == "item" && r.Method == http.MethodDelete:
		if _, ok := g.files[p]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(g.files, p)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestSharePointStore(t *testing.T) {
	ctx := context.Background()
	graph := &fakeGraph{files: map[string][]byte{}, pageSize: 1}
	srv := httptest.NewServer(graph)
	defer srv.Close()

	store := NewSharePoint(srv.Client(), srv.URL, "site-1", "/Shared Documents/")

	key := serviceFolder + "PA GC15 SERVICE DESC My Service.docx"
	require.NoError(t, store.Put(ctx, key, []byte("docx"), ContentTypeDocx))
	require.NoError(t, store.Put(ctx, serviceFolder+"OWNER Jane.txt", []byte("meta"), ContentTypeText))
	require.NoError(t, store.Put(ctx, "GCloud 15/PA Services/Cloud Support Services LOT 2/Other/x.docx", []byte("x"), ContentTypeDocx))

	_, stored := graph.files["Shared Documents/"+key]
	assert.True(t, stored, "keys are placed below the base path")

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("docx"), data)

	_, err = store.Get(ctx, serviceFolder+"missing.docx")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists(ctx, serviceFolder)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Exists(ctx, "nope.docx")
	require.NoError(t, err)
	assert.False(t, ok)

	folders, err := store.Folders(ctx, "GCloud 15/PA Services")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"GCloud 15/PA Services/Cloud Support Services LOT 2/",
		"GCloud 15/PA Services/Cloud Support Services LOT 3/",
	}, folders)

	folders, err = store.Folders(ctx, "GCloud 14/PA Services")
	require.NoError(t, err)
	assert.Empty(t, folders)

	keys, err := store.List(ctx, "GCloud 15/PA Services/Cloud Support Services LOT 3/My")
	require.NoError(t, err)
	assert.Equal(t, []string{
		serviceFolder + "OWNER Jane.txt",
		serviceFolder + "PA GC15 SERVICE DESC My Service.docx",
	}, keys)

	require.NoError(t, store.Delete(ctx, key))
	assert.ErrorIs(t, store.Delete(ctx, key), ErrNotFound)
}

func TestSharePointFromConfigRequiresCredentials(t *testing.T) {
	var cfg config.StorageConfig
	cfg.SharePoint.TenantID = "t"
	cfg.SharePoint.ClientID = "c"
	_, err := NewSharePointFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

type failingStore struct {
	err error
}

func (f failingStore) Put(context.Context, string, []byte, string) error { return f.err }
func (f failingStore) Get(context.Context, string) ([]byte, error)       { return nil, f.err }
func (f failingStore) Exists(context.Context, string) (bool, error)      { return false, f.err }
func (f failingStore) List(context.Context, string) ([]string, error)    { return nil, f.err }
func (f failingStore) Folders(context.Context, string) ([]string, error) { return nil, f.err }
func (f failingStore) Delete(context.Context, string) error              { return f.err }
func (f failingStore) Backend() string                                   { return "failing" }

func TestInstrumentedErrorMapping(t *testing.T) {
	ctx := context.Background()
	log := logger.NewTestLogger(t)

	code := func(t *testing.T, err error) errors.ErrorCode {
		t.Helper()
		stdErr, ok := errors.AsStandardError(err)
		require.True(t, ok, "expected StandardError, got %v", err)
		return stdErr.Code
	}

	broken := Instrument(failingStore{err: stderrors.New("boom")}, log)
	assert.Equal(t, errors.ErrCodeStorageWriteFailed, code(t, broken.Put(ctx, "k", nil, ContentTypeDocx)))
	_, err := broken.Get(ctx, "k")
	assert.Equal(t, errors.ErrCodeStorageReadFailed, code(t, err))
	_, err = broken.Exists(ctx, "k")
	assert.Equal(t, errors.ErrCodeStorageReadFailed, code(t, err))
	_, err = broken.List(ctx, "k")
	assert.Equal(t, errors.ErrCodeStorageReadFailed, code(t, err))
	_, err = broken.Folders(ctx, "k")
	assert.Equal(t, errors.ErrCodeStorageReadFailed, code(t, err))
	assert.Equal(t, errors.ErrCodeStorageDeleteFailed, code(t, broken.Delete(ctx, "k")))

	missing := Instrument(failingStore{err: ErrNotFound}, log)
	_, err = missing.Get(ctx, "k")
	assert.Equal(t, errors.ErrCodeDocumentNotFound, code(t, err))
	assert.NoError(t, missing.Delete(ctx, "k"), "deleting a missing key is a no-op")

	assert.Equal(t, "failing", broken.Backend())
}

func TestNewLocalDefault(t *testing.T) {
	cfg := config.StorageConfig{Backend: config.StorageBackendLocal}
	cfg.Local.Root = t.TempDir()
	store, err := New(context.Background(), cfg, aws.Config{}, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "local", store.Backend())

	_, err = New(context.Background(), config.StorageConfig{Backend: "ftp"}, aws.Config{}, logger.NewTestLogger(t))
	assert.Error(t, err)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, ContentTypeDocx, ContentTypeFor("a/b.DOCX"))
	assert.Equal(t, ContentTypePDF, ContentTypeFor("a/b.pdf"))
	assert.Equal(t, ContentTypeText, ContentTypeFor("OWNER Jane.txt"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("blob"))
}
