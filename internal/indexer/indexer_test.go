package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	qdrantpb "github.com/qdrant/go-client/qdrant"

	"outline/internal/extract"
	"outline/internal/models"
	"outline/internal/qdrant"
	"outline/internal/utils"
)

type fakeStore struct {
	mu          sync.Mutex
	ensured     map[string]uint64
	points      map[uint64]*qdrantpb.PointStruct
	deletedPath []string
	dropped     []string
	upserts     int
	lastLimit   uint64
	results     []*qdrantpb.ScoredPoint
	// createOnce makes a repeated EnsureCollection fail the way a second
	// concurrent create does against a real server.
	createOnce  bool
	ensureCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		ensured: make(map[string]uint64),
		points:  make(map[uint64]*qdrantpb.PointStruct),
	}
}

func (s *fakeStore) EnsureCollection(_ context.Context, name string, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalls++
	if _, ok := s.ensured[name]; ok && s.createOnce {
		return errors.New("collection " + name + " already exists")
	}
	s.ensured[name] = size
	return nil
}

func (s *fakeStore) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, name)
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, _ string, points []*qdrantpb.PointStruct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	for _, p := range points {
		s.points[p.GetId().GetNum()] = p
	}
	return nil
}

func (s *fakeStore) DeleteByFilePath(_ context.Context, _ string, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedPath = append(s.deletedPath, path)
	delete(s.points, pointID(path))
	return nil
}

func (s *fakeStore) Search(_ context.Context, _ string, _ []float32, limit uint64) ([]*qdrantpb.ScoredPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit
	return s.results, nil
}

type fakeEmbedder struct {
	fail map[string]bool
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		for name := range e.fail {
			if strings.Contains(text, name) {
				return nil, errors.New("embedding endpoint unavailable")
			}
		}
		out[i] = []float32{float32(len(text)), 1, 0}
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestCollectionName(t *testing.T) {
	t.Parallel()

	if got := CollectionName(""); got != defaultCollectionName {
		t.Fatalf("CollectionName(\"\")=%q, want %q", got, defaultCollectionName)
	}
	if got := CollectionName("   \t\n"); got != defaultCollectionName {
		t.Fatalf("CollectionName(whitespace)=%q, want %q", got, defaultCollectionName)
	}
	if got := CollectionName("  abc  "); got != "outline_abc" {
		t.Fatalf("CollectionName(\"  abc  \")=%q, want %q", got, "outline_abc")
	}
}

func TestPointID(t *testing.T) {
	t.Parallel()

	path := "/src/app.py"
	got := pointID(path)

	h := sha256.Sum256([]byte(path))
	want := binary.BigEndian.Uint64(h[:8])
	if got != want {
		t.Fatalf("pointID=%d, want %d", got, want)
	}
	if pointID("/src/other.py") == got {
		t.Fatalf("pointID collided for different paths")
	}
}

func TestHashFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sample.py")
	content := "class A:\n    pass\n"
	writeFile(t, path, content)

	got, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	if want := utils.HashContent(content); got != want {
		t.Fatalf("hashFile=%q, want %q", got, want)
	}

	if _, err := hashFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("hashFile(missing) expected error")
	}
}

func TestNormalizeFilePath(t *testing.T) {
	t.Parallel()

	if got := normalizeFilePath("  "); got != "" {
		t.Fatalf("normalizeFilePath(whitespace)=%q, want empty", got)
	}

	dir := t.TempDir()
	absInput := filepath.Join(dir, "a", "..", "b", "file.py")
	expected := filepath.ToSlash(filepath.Clean(absInput))
	if runtime.GOOS == "windows" {
		expected = strings.ToLower(expected)
	}
	if got := normalizeFilePath(absInput); got != expected {
		t.Fatalf("normalizeFilePath(abs)=%q, want %q", got, expected)
	}
}

func TestCanonicalizeHashKeys(t *testing.T) {
	t.Parallel()

	root, err := utils.NormalizeProjectRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NormalizeProjectRoot: %v", err)
	}

	hashes := map[string]string{
		"./pkg/app.py": "h1",
		"pkg/util.py":  "h2",
		"":             "ignored",
		"   ":          "ignored",
	}
	got := canonicalizeHashKeys(hashes, root)
	if len(got) != 2 {
		t.Fatalf("canonicalizeHashKeys len=%d, want 2", len(got))
	}

	path1 := normalizeFilePath(filepath.Join(root, "pkg", "app.py"))
	if got[path1] != "h1" {
		t.Fatalf("canonicalizeHashKeys[%q]=%q, want %q", path1, got[path1], "h1")
	}
	path2 := normalizeFilePath(filepath.Join(root, "pkg", "util.py"))
	if got[path2] != "h2" {
		t.Fatalf("canonicalizeHashKeys[%q]=%q, want %q", path2, got[path2], "h2")
	}
}

func TestFileHashStateLifecycle(t *testing.T) {
	// This test sets HOME/USERPROFILE, so do not run in parallel.
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	projectID := "project123"

	loaded, err := loadFileHashes(projectID)
	if err != nil {
		t.Fatalf("loadFileHashes (missing): %v", err)
	}
	if loaded == nil || len(loaded) != 0 {
		t.Fatalf("loadFileHashes (missing)=%v, want empty map", loaded)
	}

	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		t.Fatalf("fileHashStatePath: %v", err)
	}
	if base := filepath.Base(statePath); base != projectID+"_file_hashes.json" {
		t.Fatalf("state file base=%q, want %q", base, projectID+"_file_hashes.json")
	}
	if parent := filepath.Base(filepath.Dir(statePath)); parent != ".outline" {
		t.Fatalf("state file dir base=%q, want %q", parent, ".outline")
	}

	hashes := map[string]string{"/abs/path/file.py": "hash"}
	if err := saveFileHashes(projectID, hashes); err != nil {
		t.Fatalf("saveFileHashes: %v", err)
	}
	loaded, err = loadFileHashes(projectID)
	if err != nil {
		t.Fatalf("loadFileHashes: %v", err)
	}
	if loaded["/abs/path/file.py"] != "hash" {
		t.Fatalf("loaded hash=%q, want %q", loaded["/abs/path/file.py"], "hash")
	}

	if err := ClearProjectState(projectID); err != nil {
		t.Fatalf("ClearProjectState: %v", err)
	}
	if _, err := os.Stat(statePath); err == nil {
		t.Fatalf("expected state file to be removed")
	}
	if err := ClearProjectState(projectID); err != nil {
		t.Fatalf("ClearProjectState (missing): %v", err)
	}
}

func TestFileHashStatePathDefaultProjectID(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	statePath, err := fileHashStatePath("")
	if err != nil {
		t.Fatalf("fileHashStatePath: %v", err)
	}
	if base := filepath.Base(statePath); base != "default_file_hashes.json" {
		t.Fatalf("state file base=%q, want %q", base, "default_file_hashes.json")
	}
}

func TestDocument(t *testing.T) {
	t.Parallel()

	doc, err := Document("/src/app.py", &extract.Result{
		Path:     "/src/app.py",
		Language: "python",
		Entries:  []string{"class App:", "    def run():"},
	})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	want := "file_path: /src/app.py\nlanguage: python\nentry_count: 2\n\n" +
		"# Module elements extracted from: /src/app.py\n\nclass App:\n    def run():\n"
	if doc != want {
		t.Fatalf("Document=%q, want %q", doc, want)
	}
}

func TestIndexProjectIncremental(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	root := t.TempDir()
	appPath := filepath.Join(root, "app.py")
	utilPath := filepath.Join(root, "util.py")
	writeFile(t, appPath, "class App(Base):\n    def run(self):\n        pass\n")
	writeFile(t, utilPath, "LIMIT = 10\n")
	writeFile(t, filepath.Join(root, "empty.py"), "import os\n")

	store := newFakeStore()
	idx := NewIndexer(store, &fakeEmbedder{})
	idx.SetOutput(io.Discard)
	idx.SetWorkers(2)

	stats, err := idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if stats.Files != 3 || stats.Changed != 3 || stats.Indexed != 2 || stats.Empty != 1 || stats.Failed != 0 {
		t.Fatalf("first run stats=%+v", *stats)
	}
	if len(store.points) != 2 {
		t.Fatalf("stored points=%d, want 2", len(store.points))
	}
	if size := store.ensured[idx.collection]; size != 3 {
		t.Fatalf("collection vector size=%d, want 3", size)
	}

	appKey := normalizeFilePath(appPath)
	p, ok := store.points[pointID(appKey)]
	if !ok {
		t.Fatalf("no point stored for %s", appKey)
	}
	payload := qdrant.PayloadToMap(p.GetPayload())
	if payload["file_path"] != appKey || payload["language"] != "python" || payload["entry_count"] != int64(2) {
		t.Fatalf("unexpected payload %v", payload)
	}

	// Nothing changed: no embedding or upsert work.
	upserts := store.upserts
	stats, err = idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject (unchanged): %v", err)
	}
	if stats.Changed != 0 || stats.Deleted != 0 || store.upserts != upserts {
		t.Fatalf("unchanged run stats=%+v upserts=%d", *stats, store.upserts)
	}

	// One modified, one removed.
	writeFile(t, utilPath, "LIMIT = 20\nRETRIES = 3\n")
	if err := os.Remove(appPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	stats, err = idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject (changed): %v", err)
	}
	if stats.Changed != 1 || stats.Deleted != 1 || stats.Indexed != 1 {
		t.Fatalf("changed run stats=%+v", *stats)
	}
	if _, ok := store.points[pointID(appKey)]; ok {
		t.Fatalf("point for removed file still stored")
	}
	utilPoint := store.points[pointID(normalizeFilePath(utilPath))]
	if got := qdrant.PayloadToMap(utilPoint.GetPayload())["entry_count"]; got != int64(2) {
		t.Fatalf("util entry_count=%v, want 2", got)
	}
}

func TestIndexProjectRetriesFailedFiles(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.py"), "def ok():\n    pass\n")
	writeFile(t, filepath.Join(root, "flaky.py"), "def flaky():\n    pass\n")

	store := newFakeStore()
	embedder := &fakeEmbedder{fail: map[string]bool{"flaky": true}}
	idx := NewIndexer(store, embedder)
	idx.SetOutput(io.Discard)

	stats, err := idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if stats.Indexed != 1 || stats.Failed != 1 {
		t.Fatalf("stats=%+v, want 1 indexed 1 failed", *stats)
	}

	embedder.fail = nil
	stats, err = idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject (retry): %v", err)
	}
	if stats.Changed != 1 || stats.Indexed != 1 {
		t.Fatalf("retry stats=%+v, want the failed file retried", *stats)
	}
}

func TestIndexProjectConcurrentWorkers(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	root := t.TempDir()
	const n = 12
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("mod%02d.py", i)
		writeFile(t, filepath.Join(root, name), fmt.Sprintf("def f%d():\n    pass\n", i))
	}

	store := newFakeStore()
	store.createOnce = true
	idx := NewIndexer(store, &fakeEmbedder{})
	idx.SetOutput(io.Discard)
	idx.SetWorkers(4)

	stats, err := idx.IndexProject(context.Background(), root)
	if err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if stats.Indexed != n || stats.Failed != 0 {
		t.Fatalf("stats=%+v, want %d indexed and none failed", *stats, n)
	}
	if store.ensureCalls != 1 {
		t.Fatalf("EnsureCollection called %d times, want 1", store.ensureCalls)
	}
	if store.upserts != n || len(store.points) != n {
		t.Fatalf("upserts=%d points=%d, want %d", store.upserts, len(store.points), n)
	}
}

func TestEnsureCollectionRejectsSizeChange(t *testing.T) {
	store := newFakeStore()
	idx := NewIndexer(store, &fakeEmbedder{})
	idx.collection = "outline_x"

	if err := idx.ensureCollection(context.Background(), 3); err != nil {
		t.Fatalf("ensureCollection: %v", err)
	}
	if err := idx.ensureCollection(context.Background(), 3); err != nil {
		t.Fatalf("ensureCollection (same size): %v", err)
	}
	if err := idx.ensureCollection(context.Background(), 5); err == nil {
		t.Fatalf("ensureCollection accepted a different size")
	}
	if store.ensureCalls != 1 || store.ensured["outline_x"] != 3 {
		t.Fatalf("calls=%d ensured=%v", store.ensureCalls, store.ensured)
	}
}

func TestScanChangesKeepsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	kept := filepath.Join(dir, "kept.py")
	fresh := filepath.Join(dir, "fresh.py")
	gone := filepath.Join(dir, "unreadable.py")
	writeFile(t, kept, "A = 1\n")
	writeFile(t, fresh, "B = 2\n")

	keptHash, err := hashFile(kept)
	if err != nil {
		t.Fatalf("hashFile: %v", err)
	}
	prev := map[string]string{
		normalizeFilePath(kept): keptHash,
		normalizeFilePath(gone): "old-hash",
	}

	current, changed := scanChanges([]string{kept, fresh, gone}, prev)
	if len(changed) != 1 || changed[0] != fresh {
		t.Fatalf("changed=%v, want [%s]", changed, fresh)
	}
	if got := current[normalizeFilePath(gone)]; got != "old-hash" {
		t.Fatalf("unreadable file hash=%q, want previous hash carried forward", got)
	}
	if len(current) != 3 {
		t.Fatalf("current=%v, want 3 entries", current)
	}
}

func TestClearProject(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("USERPROFILE", tmpHome)

	root := t.TempDir()
	projectID, err := utils.ComputeProjectID(root)
	if err != nil {
		t.Fatalf("ComputeProjectID: %v", err)
	}
	if err := saveFileHashes(projectID, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("saveFileHashes: %v", err)
	}

	store := newFakeStore()
	collection, err := ClearProject(context.Background(), store, root)
	if err != nil {
		t.Fatalf("ClearProject: %v", err)
	}
	if collection != CollectionName(projectID) {
		t.Fatalf("collection=%q, want %q", collection, CollectionName(projectID))
	}
	if len(store.dropped) != 1 || store.dropped[0] != collection {
		t.Fatalf("dropped=%v", store.dropped)
	}
	statePath, _ := fileHashStatePath(projectID)
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Fatalf("state file still present: %v", err)
	}
}

func TestSearcher(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.results = []*qdrantpb.ScoredPoint{
		{
			Score: 0.91,
			Payload: qdrant.MapToPayload(models.OutlinePayload{
				FilePath:   "/src/app.py",
				Language:   "python",
				EntryCount: 2,
				Entries:    []string{"class App:", "    def run():"},
			}.ToMap()),
		},
	}

	s, err := NewSearcher(store, &fakeEmbedder{}, t.TempDir())
	if err != nil {
		t.Fatalf("NewSearcher: %v", err)
	}
	if !strings.HasPrefix(s.Collection(), "outline_") {
		t.Fatalf("Collection=%q", s.Collection())
	}

	hits, err := s.Search(context.Background(), "  application entry  ", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if store.lastLimit != DefaultTopK {
		t.Fatalf("limit=%d, want %d", store.lastLimit, DefaultTopK)
	}
	if len(hits) != 1 {
		t.Fatalf("hits=%d, want 1", len(hits))
	}
	h := hits[0]
	if h.FilePath != "/src/app.py" || h.Language != "python" || h.Score != 0.91 {
		t.Fatalf("hit=%+v", h)
	}
	if len(h.Entries) != 2 || h.Entries[1] != "    def run():" {
		t.Fatalf("entries=%q", h.Entries)
	}

	if _, err := s.Search(context.Background(), "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Search(empty) err=%v, want ErrEmptyQuery", err)
	}
}
