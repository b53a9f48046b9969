// Package analyzer finds files whose outlines are structurally alike, using
// the vectors stored by the indexer.
package analyzer

import (
	"context"
	"encoding/json"
	"sort"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"outline/internal/models"
	"outline/internal/qdrant"
	"outline/internal/utils"
)

const (
	DefaultThreshold = 0.92
	// MinEntries is the smallest outline worth comparing; tiny outlines
	// match each other trivially.
	MinEntries = 2
	pageSize   = 100
)

type Scroller interface {
	Scroll(ctx context.Context, collection string, limit uint32, offset *qdrantpb.PointId) ([]*qdrantpb.RetrievedPoint, *qdrantpb.PointId, error)
}

var _ Scroller = (*qdrant.Client)(nil)

type Analyzer struct {
	store Scroller
}

func NewAnalyzer(store Scroller) *Analyzer {
	return &Analyzer{store: store}
}

// FindSimilar groups the files in collection whose outline vectors have a
// cosine similarity of at least threshold. Groups are ordered by average
// score, highest first.
func (a *Analyzer) FindSimilar(ctx context.Context, collection string, threshold float64) ([]models.SimilarGroup, error) {
	outlines, vectors, err := a.fetchAllVectors(ctx, collection)
	if err != nil {
		return nil, err
	}

	var candidates []models.PairCandidate
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			if isTrivialPair(outlines[i], outlines[j]) {
				continue
			}
			if score := utils.CosineSim(vectors[i], vectors[j]); score >= threshold {
				candidates = append(candidates, models.PairCandidate{
					A:     outlines[i],
					B:     outlines[j],
					Score: score,
				})
			}
		}
	}

	return buildSimilarGroups(candidates), nil
}

func (a *Analyzer) fetchAllVectors(ctx context.Context, collection string) ([]models.OutlinePayload, [][]float32, error) {
	var outlines []models.OutlinePayload
	var vectors [][]float32

	var offset *qdrantpb.PointId
	for {
		points, nextOffset, err := a.store.Scroll(ctx, collection, pageSize, offset)
		if err != nil {
			return nil, nil, err
		}

		for _, point := range points {
			vec := point.GetVectors().GetVector()
			if vec == nil || len(vec.Data) == 0 {
				continue
			}

			var outline models.OutlinePayload
			data, err := json.Marshal(qdrant.PayloadToMap(point.GetPayload()))
			if err != nil {
				continue
			}
			if err := json.Unmarshal(data, &outline); err != nil {
				continue
			}
			outlines = append(outlines, outline)
			vectors = append(vectors, vec.Data)
		}

		if nextOffset == nil || len(points) == 0 {
			break
		}
		offset = nextOffset
	}

	return outlines, vectors, nil
}

func isTrivialPair(a, b models.OutlinePayload) bool {
	if a.FilePath == b.FilePath {
		return true
	}
	return a.EntryCount < MinEntries || b.EntryCount < MinEntries
}

func buildSimilarGroups(pairs []models.PairCandidate) []models.SimilarGroup {
	if len(pairs) == 0 {
		return nil
	}

	parent := make(map[string]string)
	rank := make(map[string]int)

	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	union := func(x, y string) {
		px, py := find(x), find(y)
		if px == py {
			return
		}
		switch {
		case rank[px] < rank[py]:
			parent[px] = py
		case rank[px] > rank[py]:
			parent[py] = px
		default:
			parent[py] = px
			rank[px]++
		}
	}

	for _, pair := range pairs {
		for _, key := range []string{pair.A.FilePath, pair.B.FilePath} {
			if _, ok := parent[key]; !ok {
				parent[key] = key
			}
		}
		union(pair.A.FilePath, pair.B.FilePath)
	}

	type acc struct {
		files map[string]bool
		total float64
		n     int
	}
	byRoot := make(map[string]*acc)
	for _, pair := range pairs {
		root := find(pair.A.FilePath)
		g, ok := byRoot[root]
		if !ok {
			g = &acc{files: make(map[string]bool)}
			byRoot[root] = g
		}
		g.files[pair.A.FilePath] = true
		g.files[pair.B.FilePath] = true
		g.total += pair.Score
		g.n++
	}

	result := make([]models.SimilarGroup, 0, len(byRoot))
	for _, g := range byRoot {
		files := make([]string, 0, len(g.files))
		for f := range g.files {
			files = append(files, f)
		}
		sort.Strings(files)
		result = append(result, models.SimilarGroup{
			FilePaths: files,
			AvgScore:  g.total / float64(g.n),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AvgScore != result[j].AvgScore {
			return result[i].AvgScore > result[j].AvgScore
		}
		return result[i].FilePaths[0] < result[j].FilePaths[0]
	})
	return result
}
