// Package search finds existing service descriptions by fuzzy service name,
// first through the Elasticsearch index and otherwise by walking document
// storage.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "service-documents"

// Mapping keeps the filter fields as keywords so terms queries match the
// stored values exactly.
var Mapping = []byte(`{
  "mappings": {
    "properties": {
      "document_key":      {"type": "keyword"},
      "service_name":      {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "owner":             {"type": "keyword"},
      "sponsor":           {"type": "keyword"},
      "folder":            {"type": "keyword"},
      "word_key":          {"type": "keyword"},
      "pdf_key":           {"type": "keyword"},
      "doc_type":          {"type": "keyword"},
      "framework_version": {"type": "keyword"},
      "lot":               {"type": "keyword"},
      "draft":             {"type": "boolean"},
      "generated_at":      {"type": "date"}
    }
  }
}`)

// Document is the indexed form of one stored artifact.
type Document struct {
	DocumentKey      string    `json:"document_key"`
	ServiceName      string    `json:"service_name"`
	Owner            string    `json:"owner,omitempty"`
	Sponsor          string    `json:"sponsor,omitempty"`
	Folder           string    `json:"folder"`
	WordKey          string    `json:"word_key"`
	PDFKey           string    `json:"pdf_key,omitempty"`
	DocType          string    `json:"doc_type"`
	FrameworkVersion string    `json:"framework_version"`
	Lot              string    `json:"lot"`
	Draft            bool      `json:"draft"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// Index reads and writes the service document index.
type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndex(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	if index == "" {
		index = DefaultIndex
	}
	return &Index{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "search", "index": index}),
	}
}

func (x *Index) Name() string { return x.index }

// Put indexes doc under its document key, replacing any earlier version.
func (x *Index) Put(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: doc.DocumentKey,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSearchQueryFailedError("index "+doc.DocumentKey, fmt.Errorf("%s", res.String()))
	}
	x.logger.Debug("Document indexed", map[string]interface{}{"documentKey": doc.DocumentKey})
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Find returns indexed documents whose service name matches q.
func (x *Index) Find(ctx context.Context, q Query) ([]Document, error) {
	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	size := q.Limit
	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}

	res, err := req.Do(ctx, x.client)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewSearchTimeoutError(q.ServiceName)
		}
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(q.ServiceName, fmt.Errorf("%s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError(q.ServiceName, fmt.Errorf("decode response: %w", err))
	}
	docs := make([]Document, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}

func buildQuery(q Query) map[string]interface{} {
	filters := []interface{}{
		map[string]interface{}{"terms": map[string]interface{}{"framework_version": q.Versions}},
		map[string]interface{}{"terms": map[string]interface{}{"lot": q.Lots}},
	}
	if len(q.DocTypes) > 0 {
		filters = append(filters, map[string]interface{}{"terms": map[string]interface{}{"doc_type": q.DocTypes}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"match": map[string]interface{}{
							"service_name": map[string]interface{}{
								"query":     strings.TrimSpace(q.ServiceName),
								"fuzziness": "AUTO",
							},
						},
					},
				},
				"filter": filters,
			},
		},
	}
}
