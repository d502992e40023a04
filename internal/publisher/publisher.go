// Package publisher generates a service description and stores it as the
// current version of its logical document, then fans out the side effects:
// PDF conversion, database record, search index and email.
package publisher

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/docgen"
	"gcloud-docgen/internal/notify"
	"gcloud-docgen/internal/proposals"
	"gcloud-docgen/internal/search"
	"gcloud-docgen/internal/storage"

	"golang.org/x/sync/errgroup"
)

// UnplacedFolder holds documents generated without a placement.
const UnplacedFolder = "generated"

type Generator interface {
	Generate(ctx context.Context, req docgen.Request) (*docgen.Result, error)
}

type Locker interface {
	WithLock(ctx context.Context, documentKey string, fn func(ctx context.Context) error) error
}

type PDFRequester interface {
	RequestConversion(ctx context.Context, wordKey, pdfKey, backend string) (string, error)
}

type Recorder interface {
	Upsert(ctx context.Context, rec *proposals.Record) (bool, error)
}

type Indexer interface {
	Put(ctx context.Context, doc search.Document) error
}

type Notifier interface {
	NotifyPublished(ctx context.Context, p notify.Published) (bool, error)
}

// Deps are the publisher's collaborators. Generator and Store are
// required; the rest are skipped when nil.
type Deps struct {
	Generator Generator
	Store     storage.Store
	Locker    Locker
	PDF       PDFRequester
	Records   Recorder
	Index     Indexer
	Notifier  Notifier
}

type Publisher struct {
	deps   Deps
	logger logger.Logger
	now    func() time.Time
}

func New(deps Deps, log logger.Logger) *Publisher {
	return &Publisher{
		deps:   deps,
		logger: log.WithFields(map[string]interface{}{"component": "publisher"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Request is one publish.
type Request struct {
	Payload      docgen.Payload
	TemplatePath string
	Placement    *catalog.Placement
	Owner        string
	Sponsor      string
	EditedBy     string
}

// Result describes what was stored.
type Result struct {
	GenerationID string
	Filename     string
	WordKey      string
	PDFKey       string
	PDFRequestID string
	RemovedKeys  []string
	MetadataKey  string
	NewProposal  bool
	Notified     bool
	Bytes        int
	// Warnings holds generation warnings followed by failed side effects.
	Warnings []string
}

// Publish generates the document and stores it. Storage and the database
// record are required to succeed; PDF, index and email failures become
// warnings.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	if req.Placement != nil {
		if err := req.Placement.Validate(); err != nil {
			return nil, err
		}
	}

	generated, err := p.deps.Generator.Generate(ctx, docgen.Request{
		Payload:      req.Payload,
		TemplatePath: req.TemplatePath,
		Placement:    req.Placement,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		GenerationID: generated.GenerationID,
		Filename:     generated.Filename,
		Bytes:        len(generated.Bytes),
	}
	for _, w := range generated.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}

	if req.Placement == nil {
		res.WordKey = path.Join(UnplacedFolder, generated.Filename)
		if err := p.deps.Store.Put(ctx, res.WordKey, generated.Bytes, storage.ContentTypeDocx); err != nil {
			return nil, err
		}
		return res, nil
	}

	placement := *req.Placement
	documentKey := placement.Key(catalog.DocTypeServiceDescription, catalog.ExtDocx)
	if placement.Draft {
		documentKey = placement.Counterpart().Key(catalog.DocTypeServiceDescription, catalog.ExtDocx)
	}

	store := func(ctx context.Context) error {
		return p.store(ctx, req, placement, documentKey, generated, res)
	}
	if p.deps.Locker != nil {
		err = p.deps.Locker.WithLock(ctx, documentKey, store)
	} else {
		err = store(ctx)
	}
	if err != nil {
		return nil, err
	}

	p.fanOut(ctx, req, placement, documentKey, generated, res)

	p.logger.Info("Service description published", map[string]interface{}{
		"generationId": res.GenerationID,
		"wordKey":      res.WordKey,
		"draft":        placement.Draft,
		"newProposal":  res.NewProposal,
		"warnings":     len(res.Warnings),
	})
	return res, nil
}

// store runs under the document lock.
func (p *Publisher) store(ctx context.Context, req Request, placement catalog.Placement, documentKey string, generated *docgen.Result, res *Result) error {
	res.WordKey = placement.Key(catalog.DocTypeServiceDescription, catalog.ExtDocx)
	if err := p.deps.Store.Put(ctx, res.WordKey, generated.Bytes, storage.ContentTypeDocx); err != nil {
		return err
	}

	// A final supersedes its draft. Saving a draft leaves the final alone.
	if !placement.Draft {
		draft := placement.Counterpart()
		for _, ext := range []string{catalog.ExtDocx, catalog.ExtPDF} {
			key := draft.Key(catalog.DocTypeServiceDescription, ext)
			exists, err := p.deps.Store.Exists(ctx, key)
			if err != nil {
				return err
			}
			if !exists {
				continue
			}
			if err := p.deps.Store.Delete(ctx, key); err != nil {
				return err
			}
			res.RemovedKeys = append(res.RemovedKeys, key)
		}
	}

	if err := p.writeMetadata(ctx, req, placement, res); err != nil {
		return err
	}

	if p.deps.PDF != nil {
		pdfKey := placement.Key(catalog.DocTypeServiceDescription, catalog.ExtPDF)
		id, err := p.deps.PDF.RequestConversion(ctx, res.WordKey, pdfKey, p.deps.Store.Backend())
		if err != nil {
			res.Warnings = append(res.Warnings, "pdf: "+err.Error())
		} else {
			res.PDFKey, res.PDFRequestID = pdfKey, id
		}
	}

	if p.deps.Records != nil {
		var warnings []string
		if len(generated.Warnings) > 0 {
			warnings = res.Warnings[:len(generated.Warnings)]
		}
		if _, err := p.deps.Records.Upsert(ctx, &proposals.Record{
			DocumentKey:      documentKey,
			ServiceName:      placement.ServiceName,
			Owner:            req.Owner,
			Sponsor:          req.Sponsor,
			FrameworkVersion: placement.FrameworkVersion,
			Lot:              placement.Lot,
			Folder:           placement.FolderPath(),
			WordKey:          res.WordKey,
			PDFKey:           res.PDFKey,
			Draft:            placement.Draft,
			Warnings:         warnings,
			GeneratedAt:      p.now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeMetadata creates the owner file of a new proposal folder, or stamps
// the editor on the existing one.
func (p *Publisher) writeMetadata(ctx context.Context, req Request, placement catalog.Placement, res *Result) error {
	folder := placement.FolderPath()
	keys, err := p.deps.Store.List(ctx, folder+"/")
	if err != nil {
		return err
	}

	var existing string
	for _, key := range keys {
		if catalog.IsOwnerMetadataKey(key) {
			existing = key
			break
		}
	}

	if existing == "" {
		if req.Owner == "" {
			return nil
		}
		meta := catalog.Metadata{
			Service:      placement.ServiceName,
			Owner:        req.Owner,
			Sponsor:      req.Sponsor,
			LastEditedBy: req.EditedBy,
		}
		res.MetadataKey = catalog.OwnerMetadataKey(folder, req.Owner)
		res.NewProposal = true
		return p.deps.Store.Put(ctx, res.MetadataKey, meta.Format(), storage.ContentTypeText)
	}

	res.MetadataKey = existing
	if req.EditedBy == "" {
		return nil
	}
	data, err := p.deps.Store.Get(ctx, existing)
	if err != nil {
		return err
	}
	meta := catalog.ParseMetadata(data)
	if meta.LastEditedBy == req.EditedBy {
		return nil
	}
	meta.LastEditedBy = req.EditedBy
	return p.deps.Store.Put(ctx, existing, meta.Format(), storage.ContentTypeText)
}

// fanOut indexes the document and sends the notification concurrently.
// Both are best effort.
func (p *Publisher) fanOut(ctx context.Context, req Request, placement catalog.Placement, documentKey string, generated *docgen.Result, res *Result) {
	var (
		mu       sync.Mutex
		warnings []string
		g        errgroup.Group
	)
	warn := func(prefix string, err error) {
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s: %v", prefix, err))
		mu.Unlock()
		p.logger.Warn("Publish side effect failed", map[string]interface{}{
			"step":  prefix,
			"error": err.Error(),
		})
	}

	if p.deps.Index != nil {
		g.Go(func() error {
			err := p.deps.Index.Put(ctx, search.Document{
				DocumentKey:      documentKey,
				ServiceName:      placement.ServiceName,
				Owner:            req.Owner,
				Sponsor:          req.Sponsor,
				Folder:           placement.FolderPath(),
				WordKey:          res.WordKey,
				PDFKey:           res.PDFKey,
				DocType:          string(catalog.DocTypeServiceDescription),
				FrameworkVersion: placement.FrameworkVersion,
				Lot:              placement.Lot,
				Draft:            placement.Draft,
				GeneratedAt:      p.now(),
			})
			if err != nil {
				warn("index", err)
			}
			return nil
		})
	}

	if p.deps.Notifier != nil {
		var docWarnings []string
		for _, w := range generated.Warnings {
			docWarnings = append(docWarnings, w.Error())
		}
		g.Go(func() error {
			sent, err := p.deps.Notifier.NotifyPublished(ctx, notify.Published{
				ServiceName:  placement.ServiceName,
				Owner:        req.Owner,
				WordKey:      res.WordKey,
				PDFRequested: res.PDFRequestID != "",
				Draft:        placement.Draft,
				Warnings:     docWarnings,
			})
			if err != nil {
				warn("notify", err)
				return nil
			}
			mu.Lock()
			res.Notified = sent
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	res.Warnings = append(res.Warnings, warnings...)
}
