package docgen

import (
	"context"
	"fmt"
	"time"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/common/metrics"
	"gcloud-docgen/internal/docx"

	"github.com/beevik/etree"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stage is a step of the generation pipeline. A run moves through the
// stages in declaration order and never goes back.
type Stage string

const (
	StageLoaded               Stage = "loaded"
	StageTitleSet             Stage = "title_set"
	StageAboutBlockDetached   Stage = "about_block_detached"
	StageSectionsCleared      Stage = "sections_cleared"
	StageContentInserted      Stage = "content_inserted"
	StageTocRebuilt           Stage = "toc_rebuilt"
	StageAboutBlockReattached Stage = "about_block_reattached"
	StagePlaceholdersSwept    Stage = "placeholders_swept"
	StageSerialized           Stage = "serialized"
)

var stageOrder = []Stage{
	StageLoaded,
	StageTitleSet,
	StageAboutBlockDetached,
	StageSectionsCleared,
	StageContentInserted,
	StageTocRebuilt,
	StageAboutBlockReattached,
	StagePlaceholdersSwept,
	StageSerialized,
}

// Request is one generation.
type Request struct {
	Payload Payload
	// TemplatePath overrides template resolution.
	TemplatePath string
	// Placement names the logical document; nil yields an opaque filename.
	Placement *catalog.Placement
}

// Result is a generated document.
type Result struct {
	Bytes        []byte
	Filename     string
	GenerationID string
	TemplatePath string
	Warnings     []*RecoverableError
	Stages       []Stage
}

// Generator runs the transformation pipeline. It holds no per-request
// state and may be shared across goroutines.
type Generator struct {
	loader  *Loader
	fetcher ImageFetcher
	opts    Options
	log     logger.Logger
	tracer  trace.Tracer
}

func NewGenerator(loader *Loader, fetcher ImageFetcher, opts Options, log logger.Logger) *Generator {
	return &Generator{
		loader:  loader,
		fetcher: fetcher,
		opts:    opts,
		log:     log,
		tracer:  otel.Tracer("gcloud-docgen/docgen"),
	}
}

// run is the per-request state.
type run struct {
	g        *Generator
	doc      *docx.Document
	req      Request
	result   *Result
	current  int
	detached []*etree.Element
	retained map[string]*etree.Element
	placed   TitlePlacement
	titleEl  *etree.Element
}

// Generate loads a fresh template tree and runs every stage on it. Stage
// failures are returned as DOCUMENT_TRANSFORM_FAILED; best-effort failures
// are collected in Result.Warnings.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "docgen.Generate")
	defer span.End()

	result := &Result{GenerationID: ulid.Make().String()}
	log := g.log.WithFields(map[string]interface{}{
		"generationId": result.GenerationID,
		"title":        req.Payload.Title,
	})
	span.SetAttributes(attribute.String("docgen.generation_id", result.GenerationID))

	r := &run{g: g, req: req, result: result, current: -1}
	err := r.execute(ctx, log)
	if err != nil {
		metrics.DocgenGenerations.WithLabelValues("failure").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Document generation failed", map[string]interface{}{
			"error": err.Error(),
			"stage": string(r.stage()),
		})
		return nil, err
	}

	outcome := "success"
	if len(result.Warnings) > 0 {
		outcome = "success_with_warnings"
	}
	metrics.DocgenGenerations.WithLabelValues(outcome).Inc()
	log.Info("Document generated", map[string]interface{}{
		"filename": result.Filename,
		"bytes":    len(result.Bytes),
		"warnings": len(result.Warnings),
	})
	return result, nil
}

func (r *run) stage() Stage {
	if r.current < 0 {
		return ""
	}
	return stageOrder[r.current]
}

// advance moves to the next stage, rejecting anything out of order.
func (r *run) advance(to Stage) error {
	next := r.current + 1
	if next >= len(stageOrder) || stageOrder[next] != to {
		return fmt.Errorf("invalid stage transition from %q to %q", r.stage(), to)
	}
	r.current = next
	r.result.Stages = append(r.result.Stages, to)
	return nil
}

func (r *run) warn(log logger.Logger, w *RecoverableError) {
	if w == nil {
		return
	}
	r.result.Warnings = append(r.result.Warnings, w)
	metrics.DocgenRecoverableErrors.WithLabelValues(string(w.Stage), w.Kind).Inc()
	log.Warn("Recoverable generation error", map[string]interface{}{
		"stage":   string(w.Stage),
		"kind":    w.Kind,
		"subject": w.Subject,
		"error":   w.Error(),
	})
}

// step runs fn as stage inside its own span and records its duration.
func (r *run) step(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	ctx, span := r.g.tracer.Start(ctx, "docgen."+string(stage))
	defer span.End()
	start := time.Now()

	err := fn(ctx)
	metrics.DocgenStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if _, ok := errors.AsStandardError(err); ok {
			return err
		}
		return errors.NewDocumentTransformFailedError(string(stage), err)
	}
	return r.advance(stage)
}

func (r *run) execute(ctx context.Context, log logger.Logger) error {
	g := r.g
	title := r.req.Payload.Title

	if err := r.step(ctx, StageLoaded, func(context.Context) error {
		doc, path, err := g.loader.Load(r.req.TemplatePath)
		if err != nil {
			return err
		}
		r.doc = doc
		r.result.TemplatePath = path
		return nil
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageTitleSet, func(context.Context) error {
		placed, el, err := placeTitle(r.doc, title, g.opts)
		r.placed, r.titleEl = placed, el
		return err
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageAboutBlockDetached, func(context.Context) error {
		detached, err := DetachAboutBlock(r.doc, g.opts, r.titleEl)
		if err != nil {
			return err
		}
		if len(detached) == 0 {
			r.warn(log, &RecoverableError{Stage: StageAboutBlockDetached, Kind: KindAboutNotFound})
		}
		r.detached = detached
		return nil
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageSectionsCleared, func(context.Context) error {
		retained, err := ExciseSections(r.doc, g.opts, r.titleEl)
		r.retained = retained
		return err
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageContentInserted, func(ctx context.Context) error {
		_, warnings, err := InsertContent(ctx, r.doc, Insertion{
			Payload:     r.req.Payload,
			Retained:    r.retained,
			RepeatTitle: r.placed != TitleInHeading,
			Fetcher:     g.fetcher,
		}, g.opts)
		for _, w := range warnings {
			r.warn(log, w)
		}
		return err
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageTocRebuilt, func(context.Context) error {
		w, err := RebuildTOC(r.doc, g.opts)
		r.warn(log, w)
		return err
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StageAboutBlockReattached, func(context.Context) error {
		return ReattachAboutBlock(r.doc, r.detached)
	}); err != nil {
		return err
	}

	if err := r.step(ctx, StagePlaceholdersSwept, func(context.Context) error {
		n, err := SweepPlaceholders(r.doc, title, g.opts)
		if n > 0 {
			log.Debug("Placeholders replaced", map[string]interface{}{"count": n})
		}
		return err
	}); err != nil {
		return err
	}

	return r.step(ctx, StageSerialized, func(context.Context) error {
		parts := r.doc.WordXMLParts()
		data, err := r.doc.Bytes()
		if err != nil {
			return errors.NewDocumentSerializeFailedError(err)
		}
		data, err = SweepSerialized(data, parts, title, g.opts)
		if err != nil {
			return errors.NewDocumentSerializeFailedError(err)
		}
		r.result.Bytes = data
		if r.req.Placement != nil {
			r.result.Filename = r.req.Placement.FileName(catalog.DocTypeServiceDescription, catalog.ExtDocx)
		} else {
			r.result.Filename = catalog.OpaqueFilename(title)
		}
		return nil
	})
}
