package search

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Query selects documents by fuzzy service name.
type Query struct {
	ServiceName string
	// DocTypes limits the match to these kinds; empty means service
	// descriptions and pricing documents.
	DocTypes []string
	Versions []string
	Lots     []string
	Limit    int
}

func (q Query) withDefaults() Query {
	if len(q.DocTypes) == 0 {
		q.DocTypes = []string{string(catalog.DocTypeServiceDescription), string(catalog.DocTypePricing)}
	}
	if len(q.Versions) == 0 {
		q.Versions = catalog.SearchVersions
	}
	if len(q.Lots) == 0 {
		q.Lots = catalog.SearchLots
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return q
}

// Result is one matching document.
type Result struct {
	ServiceName      string `json:"serviceName"`
	Owner            string `json:"owner"`
	Sponsor          string `json:"sponsor"`
	FolderPath       string `json:"folderPath"`
	DocType          string `json:"docType"`
	Lot              string `json:"lot"`
	FrameworkVersion string `json:"gcloudVersion"`
	WordKey          string `json:"wordKey"`
	Draft            bool   `json:"draft"`
	Source           string `json:"source"`
}

const (
	SourceIndex   = "index"
	SourceStorage = "storage"
)

// Searcher queries the index when one is configured and falls back to
// walking storage when the index is absent or failing.
type Searcher struct {
	index  *Index
	store  storage.Store
	logger logger.Logger
}

// NewSearcher accepts a nil index.
func NewSearcher(index *Index, store storage.Store, log logger.Logger) *Searcher {
	return &Searcher{
		index:  index,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	q = q.withDefaults()

	if s.index != nil {
		docs, err := s.index.Find(ctx, q)
		if err == nil {
			return s.fromIndex(q, docs), nil
		}
		s.logger.Warn("Index search failed, walking storage", map[string]interface{}{
			"query": q.ServiceName,
			"error": err.Error(),
		})
	}
	return s.walkStorage(ctx, q)
}

// fromIndex keeps the hits that also pass the containment match, so both
// paths agree on what counts as the same service.
func (s *Searcher) fromIndex(q Query, docs []Document) []Result {
	var results []Result
	for _, d := range docs {
		if !catalog.FuzzyMatch(q.ServiceName, d.ServiceName) {
			continue
		}
		results = append(results, Result{
			ServiceName:      d.ServiceName,
			Owner:            d.Owner,
			Sponsor:          d.Sponsor,
			FolderPath:       d.Folder,
			DocType:          d.DocType,
			Lot:              d.Lot,
			FrameworkVersion: d.FrameworkVersion,
			WordKey:          d.WordKey,
			Draft:            d.Draft,
			Source:           SourceIndex,
		})
	}
	return limit(sortResults(results), q.Limit)
}

func (s *Searcher) walkStorage(ctx context.Context, q Query) ([]Result, error) {
	var (
		mu      sync.Mutex
		results []Result
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, version := range q.Versions {
		for _, lot := range q.Lots {
			g.Go(func() error {
				found, err := s.walkLot(ctx, q, version, lot)
				if err != nil {
					return err
				}
				mu.Lock()
				results = append(results, found...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return limit(sortResults(results), q.Limit), nil
}

func (s *Searcher) walkLot(ctx context.Context, q Query, version, lot string) ([]Result, error) {
	folders, err := s.store.Folders(ctx, catalog.LotFolder(version, lot))
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, folder := range folders {
		folder = strings.TrimSuffix(folder, "/")
		folderName := strings.ReplaceAll(path.Base(folder), "_", " ")
		if !catalog.FuzzyMatch(q.ServiceName, folderName) {
			continue
		}

		keys, err := s.store.List(ctx, folder+"/")
		if err != nil {
			return nil, err
		}
		meta, ok := s.readMetadata(ctx, keys)
		if !ok {
			continue
		}
		service := meta.Service
		if service == "" {
			service = folderName
		}

		for _, docType := range q.DocTypes {
			key, draft, found := pickDocument(keys, version, docType)
			if !found {
				continue
			}
			results = append(results, Result{
				ServiceName:      service,
				Owner:            meta.Owner,
				Sponsor:          meta.Sponsor,
				FolderPath:       folder,
				DocType:          docType,
				Lot:              lot,
				FrameworkVersion: version,
				WordKey:          key,
				Draft:            draft,
				Source:           SourceStorage,
			})
		}
	}
	return results, nil
}

// readMetadata loads the first owner file among keys. Folders without
// one are not proposals and are skipped.
func (s *Searcher) readMetadata(ctx context.Context, keys []string) (catalog.Metadata, bool) {
	for _, key := range keys {
		if !catalog.IsOwnerMetadataKey(key) {
			continue
		}
		data, err := s.store.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Unreadable owner file", map[string]interface{}{"key": key, "error": err.Error()})
			return catalog.Metadata{}, false
		}
		return catalog.ParseMetadata(data), true
	}
	return catalog.Metadata{}, false
}

// pickDocument finds the Word document of docType among keys, preferring
// the final over the draft.
func pickDocument(keys []string, version, docType string) (string, bool, bool) {
	prefix := "PA GC" + version + " " + docType + " "
	var draftKey string
	for _, key := range keys {
		base := path.Base(key)
		if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, "."+catalog.ExtDocx) {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(base, "."+catalog.ExtDocx), "_draft") {
			if draftKey == "" {
				draftKey = key
			}
			continue
		}
		return key, false, true
	}
	if draftKey != "" {
		return draftKey, true, true
	}
	return "", false, false
}

func sortResults(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FrameworkVersion != b.FrameworkVersion {
			return a.FrameworkVersion > b.FrameworkVersion
		}
		if a.Lot != b.Lot {
			return a.Lot < b.Lot
		}
		if a.ServiceName != b.ServiceName {
			return a.ServiceName < b.ServiceName
		}
		return a.DocType > b.DocType
	})
	return results
}

func limit(results []Result, n int) []Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}
