// Package search mirrors stored form responses into Elasticsearch for the
// recruiter review queue. Indexing is best-effort: a search outage must
// never fail an inbound response.
package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v8"

	"recruithub/internal/common/logger"
	"recruithub/internal/models"
)

// ResponseIndexer writes response documents to a single index.
type ResponseIndexer struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewResponseIndexer(es *elasticsearch.Client, index string, log logger.Logger) *ResponseIndexer {
	if index == "" {
		index = "form-responses"
	}
	return &ResponseIndexer{es: es, index: index, logger: log}
}

// IndexResponse stores the response document under its id. Failures are
// logged and swallowed.
func (i *ResponseIndexer) IndexResponse(ctx context.Context, resp *models.FormResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		i.logger.Warn("failed to serialize response for indexing", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return
	}

	res, err := i.es.Index(
		i.index,
		bytes.NewReader(body),
		i.es.Index.WithDocumentID(resp.ID),
		i.es.Index.WithContext(ctx),
	)
	if err != nil {
		i.logger.Warn("failed to index response", map[string]interface{}{
			"responseId": resp.ID,
			"error":      err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("elasticsearch rejected response document", map[string]interface{}{
			"responseId": resp.ID,
			"status":     res.Status(),
		})
	}
}
