package store

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	"github.com/gofrs/flock"
)

// DenseOverFetch is the candidate multiplier applied to filtered vector
// searches so post-filtering still yields enough results.
const DenseOverFetch = 5

const (
	aliasManifestName = "aliases.json"
	collectionsDir    = "collections"
	lockFileName      = ".loreseek.lock"
)

// collection is one in-memory index generation. The HNSW graph uses
// internal keys distinct from point IDs so replaced points can be
// lazily deleted without touching the graph.
type collection struct {
	dims    int
	graph   *hnsw.Graph[uint64]
	points  map[uint64]Point
	idToKey map[uint64]uint64
	keyToID map[uint64]uint64
	nextKey uint64
}

func newCollection(dims int) *collection {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 40
	graph.Ml = 0.25
	return &collection{
		dims:    dims,
		graph:   graph,
		points:  make(map[uint64]Point),
		idToKey: make(map[uint64]uint64),
		keyToID: make(map[uint64]uint64),
	}
}

func (c *collection) upsert(p Point) {
	if oldKey, ok := c.idToKey[p.ID]; ok {
		// Lazy deletion: orphan the old graph node instead of removing
		// it, which coder/hnsw does not handle reliably.
		delete(c.keyToID, oldKey)
	}
	key := c.nextKey
	c.nextKey++

	vec := make([]float32, len(p.Vector))
	copy(vec, p.Vector)
	normalizeVectorInPlace(vec)

	c.graph.Add(hnsw.MakeNode(key, vec))
	c.idToKey[p.ID] = key
	c.keyToID[key] = p.ID
	c.points[p.ID] = p
}

// collectionSnapshot is the gob persistence form. Only points are
// stored; the graph is rebuilt on load, which also drops orphans.
type collectionSnapshot struct {
	Dims   int
	Points []Point
}

// LocalIndexService is an in-process IndexService backed by coder/hnsw
// graphs, persisted per collection as gob snapshots plus a JSON alias
// manifest. A file lock guards the directory against concurrent
// processes. An empty directory path gives a purely in-memory service.
type LocalIndexService struct {
	mu          sync.RWMutex
	dir         string
	lock        *flock.Flock
	collections map[string]*collection
	aliases     map[string]string
}

var _ IndexService = (*LocalIndexService)(nil)

// NewLocalIndexService opens (or creates) the index directory and loads
// any persisted collections and aliases.
func NewLocalIndexService(dir string) (*LocalIndexService, error) {
	s := &LocalIndexService{
		dir:         dir,
		collections: make(map[string]*collection),
		aliases:     make(map[string]string),
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Join(dir, collectionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	s.lock = flock.New(filepath.Join(dir, lockFileName))
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("index directory %s is locked by another process", dir)
	}

	if err := s.load(); err != nil {
		_ = s.lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *LocalIndexService) load() error {
	manifest := filepath.Join(s.dir, aliasManifestName)
	data, err := os.ReadFile(manifest)
	if err == nil {
		if err := json.Unmarshal(data, &s.aliases); err != nil {
			return fmt.Errorf("parse alias manifest: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read alias manifest: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, collectionsDir))
	if err != nil {
		return fmt.Errorf("read collections directory: %w", err)
	}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".gob")
		if !ok {
			continue
		}
		col, err := loadCollection(filepath.Join(s.dir, collectionsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("load collection %s: %w", name, err)
		}
		s.collections[name] = col
	}
	return nil
}

func loadCollection(path string) (*collection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var snap collectionSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	col := newCollection(snap.Dims)
	for _, p := range snap.Points {
		col.upsert(p)
	}
	return col, nil
}

func (s *LocalIndexService) collectionPath(name string) string {
	return filepath.Join(s.dir, collectionsDir, name+".gob")
}

// persistCollection writes the snapshot atomically (temp file + rename).
func (s *LocalIndexService) persistCollection(name string, col *collection) error {
	if s.dir == "" {
		return nil
	}

	snap := collectionSnapshot{Dims: col.dims, Points: make([]Point, 0, len(col.points))}
	for _, p := range col.points {
		snap.Points = append(snap.Points, p)
	}
	sort.Slice(snap.Points, func(i, j int) bool { return snap.Points[i].ID < snap.Points[j].ID })

	path := s.collectionPath(name)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

// persistAliases writes the alias manifest atomically.
func (s *LocalIndexService) persistAliases() error {
	if s.dir == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.aliases, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal alias manifest: %w", err)
	}
	path := filepath.Join(s.dir, aliasManifestName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write alias manifest: %w", err)
	}
	return os.Rename(tmp, path)
}

// resolve maps a name that may be an alias to its collection. Caller
// must hold at least a read lock.
func (s *LocalIndexService) resolve(name string) (string, *collection, error) {
	if col, ok := s.collections[name]; ok {
		return name, col, nil
	}
	if target, ok := s.aliases[name]; ok {
		if col, ok := s.collections[target]; ok {
			return target, col, nil
		}
		return "", nil, fmt.Errorf("alias %s: %w", name, ErrCollectionNotFound)
	}
	return "", nil, fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
}

// CreateCollection creates an empty collection.
func (s *LocalIndexService) CreateCollection(ctx context.Context, name string, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("invalid dimensions %d", dims)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; exists {
		return fmt.Errorf("%s: %w", name, ErrCollectionExists)
	}
	if _, exists := s.aliases[name]; exists {
		return fmt.Errorf("%s names an alias: %w", name, ErrCollectionExists)
	}

	col := newCollection(dims)
	if err := s.persistCollection(name, col); err != nil {
		return err
	}
	s.collections[name] = col
	return nil
}

// DeleteCollection removes a collection. Collections still referenced
// by an alias are protected.
func (s *LocalIndexService) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; !exists {
		return fmt.Errorf("%s: %w", name, ErrCollectionNotFound)
	}
	for alias, target := range s.aliases {
		if target == name {
			return fmt.Errorf("%s is target of alias %s: %w", name, alias, ErrCollectionAliased)
		}
	}

	delete(s.collections, name)
	if s.dir != "" {
		if err := os.Remove(s.collectionPath(name)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove collection snapshot", "collection", name, "error", err)
		}
	}
	return nil
}

// ListCollections returns info for all collections.
func (s *LocalIndexService) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]CollectionInfo, 0, len(s.collections))
	for name, col := range s.collections {
		infos = append(infos, CollectionInfo{Name: name, Dimensions: col.dims, Points: len(col.points)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Count returns the number of live points.
func (s *LocalIndexService) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, col, err := s.resolve(name)
	if err != nil {
		return 0, err
	}
	return len(col.points), nil
}

// Upsert writes points, replacing any with matching IDs, and persists
// the collection snapshot.
func (s *LocalIndexService) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, col, err := s.resolve(name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != col.dims {
			return fmt.Errorf("point %d has %d dimensions, collection expects %d", p.ID, len(p.Vector), col.dims)
		}
	}
	for _, p := range points {
		col.upsert(p)
	}
	return s.persistCollection(resolved, col)
}

// SearchVectors returns the nearest points by cosine similarity.
// Filtered searches over-fetch candidates before post-filtering.
func (s *LocalIndexService) SearchVectors(ctx context.Context, name string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, col, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	if len(vector) != col.dims {
		return nil, fmt.Errorf("query has %d dimensions, collection expects %d", len(vector), col.dims)
	}
	if limit <= 0 || col.graph.Len() == 0 {
		return []ScoredPoint{}, nil
	}

	candidates := limit
	if filter != nil && len(filter.Must) > 0 {
		candidates = limit * DenseOverFetch
	}
	// Fetch extra to skip over lazily deleted graph nodes.
	if orphans := col.graph.Len() - len(col.idToKey); orphans > 0 {
		candidates += orphans
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeVectorInPlace(query)

	nodes := col.graph.Search(query, candidates)
	results := make([]ScoredPoint, 0, limit)
	for _, node := range nodes {
		id, ok := col.keyToID[node.Key]
		if !ok {
			continue
		}
		p := col.points[id]
		if !filter.Matches(p.Payload) {
			continue
		}
		distance := col.graph.Distance(query, node.Value)
		score := float64(1 - distance)
		if score < 0 {
			score = 0
		}
		results = append(results, ScoredPoint{Point: p, Score: score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// Scroll pages through points in ID order.
func (s *LocalIndexService) Scroll(ctx context.Context, name string, offset uint64, limit int) ([]Point, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, col, err := s.resolve(name)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint64, 0, len(col.points))
	for id := range col.points {
		if id >= offset {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}
	page := make([]Point, 0, limit)
	for _, id := range ids[:limit] {
		page = append(page, col.points[id])
	}

	var next uint64
	if limit < len(ids) {
		next = ids[limit]
	}
	return page, next, nil
}

// UpdateAliases applies alias operations as a batch. Operations are
// validated against a copy of the alias table first, so either all take
// effect or none does.
func (s *LocalIndexService) UpdateAliases(ctx context.Context, ops []AliasOp) error {
	if len(ops) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(s.aliases))
	for alias, target := range s.aliases {
		staged[alias] = target
	}

	for _, op := range ops {
		switch op.Action {
		case AliasCreate:
			if _, isCollection := s.collections[op.Alias]; isCollection {
				return fmt.Errorf("alias %s collides with a collection name", op.Alias)
			}
			if _, ok := s.collections[op.Collection]; !ok {
				return fmt.Errorf("alias %s target %s: %w", op.Alias, op.Collection, ErrCollectionNotFound)
			}
			staged[op.Alias] = op.Collection
		case AliasDelete:
			if _, ok := staged[op.Alias]; !ok {
				return fmt.Errorf("%s: %w", op.Alias, ErrAliasNotFound)
			}
			delete(staged, op.Alias)
		default:
			return fmt.Errorf("unknown alias action %q", op.Action)
		}
	}

	previous := s.aliases
	s.aliases = staged
	if err := s.persistAliases(); err != nil {
		s.aliases = previous
		return err
	}
	return nil
}

// ResolveAlias returns the collection an alias points to.
func (s *LocalIndexService) ResolveAlias(ctx context.Context, alias string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target, ok := s.aliases[alias]
	if !ok {
		return "", fmt.Errorf("%s: %w", alias, ErrAliasNotFound)
	}
	return target, nil
}

// ListAliases returns a copy of the alias table.
func (s *LocalIndexService) ListAliases(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.aliases))
	for alias, target := range s.aliases {
		out[alias] = target
	}
	return out, nil
}

// Close releases the directory lock.
func (s *LocalIndexService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
