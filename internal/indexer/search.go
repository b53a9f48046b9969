package indexer

import (
	"context"
	"errors"
	"fmt"

	"outline/internal/embeddings"
	"outline/internal/models"
	"outline/internal/qdrant"
	"outline/internal/utils"
)

const DefaultTopK = 10

var ErrEmptyQuery = errors.New("query is empty")

// Searcher runs semantic queries against one project's outline collection.
type Searcher struct {
	store      Store
	embedder   embeddings.Embedder
	collection string
}

func NewSearcher(store Store, embedder embeddings.Embedder, rootPath string) (*Searcher, error) {
	projectID, err := utils.ComputeProjectID(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project id: %w", err)
	}
	return &Searcher{
		store:      store,
		embedder:   embedder,
		collection: CollectionName(projectID),
	}, nil
}

func (s *Searcher) Collection() string {
	return s.collection
}

// Search returns up to topK outlines ranked by similarity to query.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	query = utils.NormalizeQuery(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, embeddings.ErrEmpty
	}

	points, err := s.store.Search(ctx, s.collection, vectors[0], uint64(topK))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.collection, err)
	}

	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		payload := qdrant.PayloadToMap(p.GetPayload())
		hit := models.SearchHit{Score: p.GetScore()}
		hit.FilePath, _ = payload["file_path"].(string)
		hit.Language, _ = payload["language"].(string)
		if items, ok := payload["entries"].([]interface{}); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					hit.Entries = append(hit.Entries, s)
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
