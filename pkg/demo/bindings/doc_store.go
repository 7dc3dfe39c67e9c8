package bindings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
)

// DocStore is the demo worker's document binding: put a document under an id,
// list the most recent documents in an index.
type DocStore interface {
	Put(ctx context.Context, index string, id string, document map[string]interface{}) error
	List(ctx context.Context, index string, size int) ([]map[string]interface{}, error)
}

type ElasticDocStoreImpl struct {
	es *elasticsearch.Client
}

func NewElasticDocStoreImpl(es *elasticsearch.Client) *ElasticDocStoreImpl {
	return &ElasticDocStoreImpl{es: es}
}

func (d *ElasticDocStoreImpl) Put(
	ctx context.Context,
	index string,
	id string,
	document map[string]interface{},
) error {
	documentJSON, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("error marshaling document: %w", err)
	}
	res, err := d.es.Index(
		index,
		bytes.NewReader(documentJSON),
		d.es.Index.WithDocumentID(id),
		d.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index error: %s", res.String())
	}
	return nil
}

func (d *ElasticDocStoreImpl) List(
	ctx context.Context,
	index string,
	size int,
) ([]map[string]interface{}, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
		"size": size,
	}
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("error marshaling query: %w", err)
	}
	res, err := d.es.Search(
		d.es.Search.WithIndex(index),
		d.es.Search.WithBody(bytes.NewReader(queryJSON)),
		d.es.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var searchResult map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("error decoding search response: %w", err)
	}
	hitsWrapper, ok := searchResult["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search response shape")
	}
	hits, ok := hitsWrapper["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search response shape")
	}
	documents := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		documents = append(documents, source)
	}
	return documents, nil
}
