package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	qdrantpb "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"outline/internal/embeddings"
	"outline/internal/extract"
	"outline/internal/models"
	"outline/internal/parser"
	"outline/internal/qdrant"
	"outline/internal/report"
	"outline/internal/utils"
)

const (
	defaultCollectionName = "outline_default"
	collectionPrefix      = "outline_"
	NumWorkers            = 4
)

// CollectionName returns the Qdrant collection name for a given project ID.
// If projectID is empty, the shared default collection is used.
func CollectionName(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return defaultCollectionName
	}
	return collectionPrefix + projectID
}

// Store is the subset of the vector store the indexer needs.
type Store interface {
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []*qdrantpb.PointStruct) error
	DeleteByFilePath(ctx context.Context, collection, path string) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]*qdrantpb.ScoredPoint, error)
}

var _ Store = (*qdrant.Client)(nil)

// Stats summarizes one IndexProject run.
type Stats struct {
	Files   int
	Changed int
	Deleted int
	Indexed int
	Empty   int
	Failed  int
}

type Indexer struct {
	store    Store
	embedder embeddings.Embedder
	lang     parser.Language
	workers  int
	out      io.Writer

	projectID  string
	collection string

	// collMu guards collSize, the vector size the collection was ensured
	// with during the current run. Zero means not yet ensured.
	collMu   sync.Mutex
	collSize uint64
}

func NewIndexer(store Store, embedder embeddings.Embedder) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		workers:  NumWorkers,
		out:      os.Stdout,
	}
}

// SetWorkers sets the number of concurrent file workers.
func (idx *Indexer) SetWorkers(n int) {
	if n > 0 {
		idx.workers = n
	}
}

// SetLanguage forces one grammar for every file.
func (idx *Indexer) SetLanguage(lang parser.Language) {
	idx.lang = lang
}

// SetOutput redirects progress messages.
func (idx *Indexer) SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	idx.out = w
}

func (idx *Indexer) IndexProject(ctx context.Context, rootPath string) (*Stats, error) {
	normalizedRoot, err := utils.NormalizeProjectRoot(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize project root: %w", err)
	}

	projectID, err := utils.ComputeProjectID(normalizedRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to compute project id: %w", err)
	}
	idx.projectID = projectID
	idx.collection = CollectionName(projectID)
	idx.collMu.Lock()
	idx.collSize = 0
	idx.collMu.Unlock()
	fmt.Fprintf(idx.out, "→ Project fingerprint: %s\n", projectID[:12])
	fmt.Fprintf(idx.out, "→ Using collection: %s\n", idx.collection)

	files, err := utils.GetAllSourceFiles(normalizedRoot)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Files: len(files)}
	fmt.Fprintf(idx.out, "✓ Found %d source files\n", len(files))

	// Load previous file hashes for incremental indexing.
	prevHashes, err := loadFileHashes(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load file hashes: %w", err)
	}
	prevHashes = canonicalizeHashKeys(prevHashes, normalizedRoot)

	currentHashes, changedFiles := scanChanges(files, prevHashes)

	var deletedFiles []string
	for path := range prevHashes {
		if _, ok := currentHashes[path]; !ok {
			deletedFiles = append(deletedFiles, path)
		}
	}
	stats.Changed = len(changedFiles)
	stats.Deleted = len(deletedFiles)

	fmt.Fprintf(idx.out, "→ Incremental index: %d added/modified, %d deleted, %d total files\n", len(changedFiles), len(deletedFiles), len(files))

	if len(changedFiles) == 0 && len(deletedFiles) == 0 {
		fmt.Fprintln(idx.out, "✓ No changes detected, index is already up to date")
		return stats, nil
	}

	for _, normalizedPath := range deletedFiles {
		if err := idx.store.DeleteByFilePath(ctx, idx.collection, normalizedPath); err != nil {
			log.Warn().Err(err).Str("file", normalizedPath).Msg("failed to delete outline of removed file")
			// Keep the old hash so the deletion is retried next run.
			currentHashes[normalizedPath] = prevHashes[normalizedPath]
			continue
		}
		fmt.Fprintf(idx.out, "✓ Deleted outline for removed file %s\n", filepath.FromSlash(normalizedPath))
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fileCh := make(chan string)
	for i := 0; i < idx.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				indexed, err := idx.processFile(ctx, path)

				mu.Lock()
				switch {
				case err != nil:
					stats.Failed++
					// Forget the hash so the file is retried next run.
					delete(currentHashes, normalizeFilePath(path))
					log.Warn().Err(err).Str("file", path).Msg("failed to index file")
				case indexed:
					stats.Indexed++
				default:
					stats.Empty++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, f := range changedFiles {
		select {
		case fileCh <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(fileCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if err := saveFileHashes(idx.projectID, currentHashes); err != nil {
		return stats, fmt.Errorf("failed to save file hashes: %w", err)
	}

	fmt.Fprintln(idx.out, "✓ Indexing completed")
	return stats, nil
}

// processFile replaces the stored outline of path. It reports false when the
// file has no entries and nothing was stored.
func (idx *Indexer) processFile(ctx context.Context, path string) (bool, error) {
	if idx.collection == "" {
		return false, errors.New("collection name is not set on indexer")
	}
	normalizedPath := normalizeFilePath(path)

	// Clear the previous outline so a file that lost all its entries does not
	// keep a stale point.
	if err := idx.store.DeleteByFilePath(ctx, idx.collection, normalizedPath); err != nil {
		log.Debug().Err(err).Str("file", path).Msg("no previous outline deleted")
	}

	res, err := extract.New(idx.lang).ExtractFile(path)
	if err != nil {
		return false, err
	}
	if len(res.Entries) == 0 {
		return false, nil
	}

	doc, err := Document(normalizedPath, res)
	if err != nil {
		return false, err
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, []string{doc})
	if err != nil {
		return false, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return false, fmt.Errorf("no embedding vector returned for %s", path)
	}

	if err := idx.ensureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return false, err
	}

	payload := models.OutlinePayload{
		FilePath:   normalizedPath,
		Language:   string(res.Language),
		CodeHash:   utils.HashContent(doc),
		EntryCount: len(res.Entries),
		Entries:    res.Entries,
		Content:    doc,
	}
	point := &qdrantpb.PointStruct{
		Id: &qdrantpb.PointId{
			PointIdOptions: &qdrantpb.PointId_Num{Num: pointID(normalizedPath)},
		},
		Vectors: &qdrantpb.Vectors{
			VectorsOptions: &qdrantpb.Vectors_Vector{
				Vector: &qdrantpb.Vector{Data: vectors[0]},
			},
		},
		Payload: qdrant.MapToPayload(payload.ToMap()),
	}

	if err := idx.store.Upsert(ctx, idx.collection, []*qdrantpb.PointStruct{point}); err != nil {
		return false, fmt.Errorf("upsert: %w", err)
	}

	fmt.Fprintf(idx.out, "✓ Indexed %s (%d entries)\n", path, len(res.Entries))
	return true, nil
}

// ensureCollection creates the collection once per run, sized by the first
// embedding. Workers calling it concurrently wait for that first call.
func (idx *Indexer) ensureCollection(ctx context.Context, size uint64) error {
	idx.collMu.Lock()
	defer idx.collMu.Unlock()

	switch idx.collSize {
	case size:
		return nil
	case 0:
	default:
		return fmt.Errorf("embedding size %d does not match collection size %d", size, idx.collSize)
	}

	if err := idx.store.EnsureCollection(ctx, idx.collection, size); err != nil {
		return err
	}
	idx.collSize = size
	return nil
}

// scanChanges hashes files and returns the new hash map along with the files
// whose hash differs from prev. A file that cannot be read keeps its previous
// hash, so its stored outline is neither deleted nor re-indexed.
func scanChanges(files []string, prev map[string]string) (map[string]string, []string) {
	current := make(map[string]string, len(files))
	var changed []string
	for _, f := range files {
		key := normalizeFilePath(f)
		hash, err := hashFile(f)
		if err != nil {
			log.Warn().Err(err).Str("file", f).Msg("failed to hash file")
			if old, ok := prev[key]; ok {
				current[key] = old
			}
			continue
		}
		current[key] = hash
		if old, ok := prev[key]; !ok || old != hash {
			changed = append(changed, f)
		}
	}
	return current, changed
}

// Document builds the text embedded for one file: a metadata header followed
// by the rendered report.
func Document(path string, res *extract.Result) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "file_path: %s\n", path)
	fmt.Fprintf(&buf, "language: %s\n", res.Language)
	fmt.Fprintf(&buf, "entry_count: %d\n\n", len(res.Entries))
	if err := report.Render(&buf, path, res.Entries); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pointID maps a normalized file path onto a stable numeric Qdrant ID, so
// re-indexing a file overwrites its point.
func pointID(path string) uint64 {
	h := sha256.Sum256([]byte(path))
	return binary.BigEndian.Uint64(h[:8])
}

// hashFile computes a stable hash for a file's entire contents. It is used to
// detect added/modified files for incremental indexing.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return utils.HashContent(string(data)), nil
}

func normalizeFilePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	normalized := filepath.ToSlash(filepath.Clean(abs))
	if runtime.GOOS == "windows" {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}

func canonicalizeHashKeys(hashes map[string]string, normalizedRoot string) map[string]string {
	if len(hashes) == 0 {
		return hashes
	}
	root := strings.TrimSpace(normalizedRoot)
	if root == "" {
		return hashes
	}
	root = filepath.Clean(root)

	out := make(map[string]string, len(hashes))
	for k, v := range hashes {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		p := filepath.FromSlash(key)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out[normalizeFilePath(p)] = v
	}
	return out
}

// loadFileHashes loads the last-seen file hash map from disk. It is stored as
// a JSON file under ~/.outline scoped by the project ID.
func loadFileHashes(projectID string) (map[string]string, error) {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return hashes, nil
}

func saveFileHashes(projectID string, hashes map[string]string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func fileHashStatePath(projectID string) (string, error) {
	stateDir, err := utils.UserStateDir()
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = "default"
	}
	return filepath.Join(stateDir, projectID+"_file_hashes.json"), nil
}

// ClearProjectState removes any local on-disk state associated with a project.
func ClearProjectState(projectID string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearProject drops the project's collection and its local hash state.
func ClearProject(ctx context.Context, store Store, rootPath string) (string, error) {
	projectID, err := utils.ComputeProjectID(rootPath)
	if err != nil {
		return "", fmt.Errorf("failed to compute project id: %w", err)
	}
	collection := CollectionName(projectID)
	if err := store.DeleteCollection(ctx, collection); err != nil {
		return collection, fmt.Errorf("failed to delete collection %s: %w", collection, err)
	}
	if err := ClearProjectState(projectID); err != nil {
		return collection, fmt.Errorf("failed to clear local state: %w", err)
	}
	return collection, nil
}
