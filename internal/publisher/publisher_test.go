package publisher

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/docgen"
	"gcloud-docgen/internal/lock"
	"gcloud-docgen/internal/notify"
	"gcloud-docgen/internal/proposals"
	"gcloud-docgen/internal/search"
	"gcloud-docgen/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const folder = "GCloud 15/PA Services/Cloud Support Services LOT 3/AI_Security"

type stubGenerator struct {
	warnings []*docgen.RecoverableError
	err      error
	calls    int
}

func (g *stubGenerator) Generate(_ context.Context, req docgen.Request) (*docgen.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	name := catalog.OpaqueFilename(req.Payload.Title)
	if req.Placement != nil {
		name = req.Placement.FileName(catalog.DocTypeServiceDescription, catalog.ExtDocx)
	}
	return &docgen.Result{
		Bytes:        []byte("docx:" + req.Payload.Title),
		Filename:     name,
		GenerationID: "gen-1",
		Warnings:     g.warnings,
	}, nil
}

type stubPDF struct {
	err   error
	calls []string
}

func (s *stubPDF) RequestConversion(_ context.Context, wordKey, pdfKey, backend string) (string, error) {
	s.calls = append(s.calls, wordKey+" -> "+pdfKey+" @"+backend)
	if s.err != nil {
		return "", s.err
	}
	return "req-1", nil
}

type stubRecords struct {
	err     error
	records []proposals.Record
}

func (s *stubRecords) Upsert(_ context.Context, rec *proposals.Record) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.records = append(s.records, *rec)
	return len(s.records) == 1, nil
}

type stubIndex struct {
	mu   sync.Mutex
	err  error
	docs []search.Document
}

func (s *stubIndex) Put(_ context.Context, doc search.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, doc)
	return s.err
}

type stubNotifier struct {
	mu   sync.Mutex
	err  error
	sent []notify.Published
}

func (s *stubNotifier) NotifyPublished(_ context.Context, p notify.Published) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	s.sent = append(s.sent, p)
	return true, nil
}

type fixture struct {
	pub      *Publisher
	store    storage.Store
	gen      *stubGenerator
	pdf      *stubPDF
	records  *stubRecords
	index    *stubIndex
	notifier *stubNotifier
	locker   *lock.Locker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &fixture{
		store:    storage.Instrument(storage.NewLocal(afero.NewMemMapFs(), "/docs"), log),
		gen:      &stubGenerator{},
		pdf:      &stubPDF{},
		records:  &stubRecords{},
		index:    &stubIndex{},
		notifier: &stubNotifier{},
		locker:   lock.NewLocker(rdb, time.Minute, log),
	}
	f.pub = New(Deps{
		Generator: f.gen,
		Store:     f.store,
		Locker:    f.locker,
		PDF:       f.pdf,
		Records:   f.records,
		Index:     f.index,
		Notifier:  f.notifier,
	}, log)
	return f
}

func placement(draft bool) *catalog.Placement {
	return &catalog.Placement{FrameworkVersion: "15", Lot: "3", ServiceName: "AI Security", Draft: draft}
}

func (f *fixture) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.store.Exists(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestPublishDraftCreatesProposal(t *testing.T) {
	f := newFixture(t)
	res, err := f.pub.Publish(context.Background(), Request{
		Payload:   docgen.Payload{Title: "AI Security"},
		Placement: placement(true),
		Owner:     "Jane Smith",
		Sponsor:   "Sam Lee",
	})
	require.NoError(t, err)

	assert.Equal(t, folder+"/PA GC15 SERVICE DESC AI Security_draft.docx", res.WordKey)
	assert.True(t, f.exists(t, res.WordKey))
	assert.Equal(t, folder+"/PA GC15 SERVICE DESC AI Security_draft.pdf", res.PDFKey)
	assert.Equal(t, "req-1", res.PDFRequestID)
	assert.True(t, res.NewProposal)
	assert.True(t, res.Notified)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, folder+"/OWNER Jane Smith.txt", res.MetadataKey)
	data, err := f.store.Get(context.Background(), res.MetadataKey)
	require.NoError(t, err)
	assert.Equal(t, catalog.Metadata{Service: "AI Security", Owner: "Jane Smith", Sponsor: "Sam Lee"}, catalog.ParseMetadata(data))

	require.Len(t, f.records.records, 1)
	rec := f.records.records[0]
	assert.Equal(t, folder+"/PA GC15 SERVICE DESC AI Security.docx", rec.DocumentKey, "draft and final share one record")
	assert.True(t, rec.Draft)

	require.Len(t, f.index.docs, 1)
	assert.Equal(t, rec.DocumentKey, f.index.docs[0].DocumentKey)
	require.Len(t, f.notifier.sent, 1)
	assert.True(t, f.notifier.sent[0].PDFRequested)
}

func TestPublishFinalRemovesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draftPDF := folder + "/PA GC15 SERVICE DESC AI Security_draft.pdf"
	_, err := f.pub.Publish(ctx, Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(true), Owner: "Jane"})
	require.NoError(t, err)
	require.NoError(t, f.store.Put(ctx, draftPDF, []byte("pdf"), storage.ContentTypePDF))

	res, err := f.pub.Publish(ctx, Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(false), EditedBy: "Ann"})
	require.NoError(t, err)

	assert.Equal(t, folder+"/PA GC15 SERVICE DESC AI Security.docx", res.WordKey)
	assert.ElementsMatch(t, []string{folder + "/PA GC15 SERVICE DESC AI Security_draft.docx", draftPDF}, res.RemovedKeys)
	assert.False(t, f.exists(t, folder+"/PA GC15 SERVICE DESC AI Security_draft.docx"))
	assert.False(t, f.exists(t, draftPDF))
	assert.True(t, f.exists(t, res.WordKey))

	assert.False(t, res.NewProposal)
	data, err := f.store.Get(ctx, folder+"/OWNER Jane.txt")
	require.NoError(t, err)
	assert.Equal(t, "Ann", catalog.ParseMetadata(data).LastEditedBy)

	// Saving a draft again leaves the final in place.
	_, err = f.pub.Publish(ctx, Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(true)})
	require.NoError(t, err)
	assert.True(t, f.exists(t, res.WordKey))

	keys, err := f.store.List(ctx, folder+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		folder + "/OWNER Jane.txt",
		folder + "/PA GC15 SERVICE DESC AI Security.docx",
		folder + "/PA GC15 SERVICE DESC AI Security_draft.docx",
	}, keys)
}

func TestPublishLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held, err := f.locker.Acquire(ctx, folder+"/PA GC15 SERVICE DESC AI Security.docx")
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = f.pub.Publish(ctx, Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(true)})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDocumentLocked, stdErr.Code)
	assert.False(t, f.exists(t, folder+"/PA GC15 SERVICE DESC AI Security_draft.docx"))
	assert.Empty(t, f.notifier.sent)
}

func TestPublishSideEffectFailuresAreWarnings(t *testing.T) {
	f := newFixture(t)
	f.gen.warnings = []*docgen.RecoverableError{{
		Stage: docgen.StageContentInserted, Kind: docgen.KindImageFetch, Subject: "https://x.test/a.png", Err: stderrors.New("timeout"),
	}}
	f.pdf.err = stderrors.New("sns down")
	f.index.err = stderrors.New("es down")
	f.notifier.err = stderrors.New("ses down")

	res, err := f.pub.Publish(context.Background(), Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(false), Owner: "Jane"})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 4)
	assert.Equal(t, "content_inserted: image_fetch (https://x.test/a.png): timeout", res.Warnings[0])
	assert.Equal(t, "pdf: sns down", res.Warnings[1])
	assert.ElementsMatch(t, []string{"index: es down", "notify: ses down"}, res.Warnings[2:])
	assert.Empty(t, res.PDFKey)
	assert.False(t, res.Notified)

	require.Len(t, f.records.records, 1)
	assert.Equal(t, []string{"content_inserted: image_fetch (https://x.test/a.png): timeout"}, f.records.records[0].Warnings)
}

func TestPublishRecordFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.records.err = errors.NewRecordPersistFailedError(stderrors.New("db down"))

	_, err := f.pub.Publish(context.Background(), Request{Payload: docgen.Payload{Title: "AI Security"}, Placement: placement(true)})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRecordPersistFailed, stdErr.Code)
	assert.Empty(t, f.index.docs)
	assert.Empty(t, f.notifier.sent)
}

func TestPublishWithoutPlacement(t *testing.T) {
	f := newFixture(t)
	res, err := f.pub.Publish(context.Background(), Request{Payload: docgen.Payload{Title: "My Service"}})
	require.NoError(t, err)

	assert.Regexp(t, `^generated/My_Service_[0-9a-f]{8}\.docx$`, res.WordKey)
	assert.True(t, f.exists(t, res.WordKey))
	assert.Empty(t, f.pdf.calls)
	assert.Empty(t, f.records.records)
}

func TestPublishInvalidPlacement(t *testing.T) {
	f := newFixture(t)
	_, err := f.pub.Publish(context.Background(), Request{
		Payload:   docgen.Payload{Title: "X"},
		Placement: &catalog.Placement{ServiceName: "X"},
	})
	assert.Error(t, err)
	assert.Zero(t, f.gen.calls)
}

func TestPublishGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.NewTemplateNotFoundError([]string{"/templates/x.docx"})

	_, err := f.pub.Publish(context.Background(), Request{Payload: docgen.Payload{Title: "X"}, Placement: placement(true)})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeTemplateNotFound, stdErr.Code)
}
