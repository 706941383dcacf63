package circuits

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/omron-net/omron-node/config"
	"github.com/omron-net/omron-node/log"
)

// getCacheSize bounds the point-lookup memoization cache of a registry.
const getCacheSize = 128

// loadConcurrency bounds how many circuits parse at once during a catalog
// scan.
const loadConcurrency = 4

// Registry is the process-wide catalog of provable circuits. It is built
// explicitly (no package-level instance), mutated only by LoadFromDir and
// queried concurrently by many callers.
type Registry struct {
	mu        sync.RWMutex
	circuits  map[string]*Circuit
	metaCache map[string]Metadata
	getCache  *lru.Cache[string, *Circuit]
	ignored   map[string]struct{}
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithIgnoreList replaces the default blacklist of circuit ids.
func WithIgnoreList(ids []string) Option {
	return func(r *Registry) {
		r.ignored = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			r.ignored[id] = struct{}{}
		}
	}
}

// NewRegistry creates an empty circuit registry. The default ignore list is
// taken from config.IgnoredCircuitIDs.
func NewRegistry(opts ...Option) *Registry {
	cache, err := lru.New[string, *Circuit](getCacheSize)
	if err != nil {
		log.Fatalf("failed to create circuit lookup cache: %v", err)
	}
	r := &Registry{
		circuits:  make(map[string]*Circuit),
		metaCache: make(map[string]Metadata),
		getCache:  cache,
	}
	WithIgnoreList(config.IgnoredCircuitIDs)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadFromDir scans dir for "model_<id>" subdirectories and loads every
// circuit that is not blacklisted and not already present. Loading is
// idempotent: an already loaded id is counted as loaded and skipped without
// re-parsing. A failure constructing one circuit is logged and skipped, it
// never aborts the overall load nor leaves the registry partially mutated.
// It returns the number of circuits loaded and the number discovered.
func (r *Registry) LoadFromDir(dir string) (loaded, found int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read circuit catalog %s: %w", dir, err)
	}
	log.Infow("loading circuits", "dir", dir)

	type candidate struct {
		id  string
		dir string
	}
	var candidates []candidate
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), config.CircuitDirPrefix) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), config.CircuitDirPrefix)
		if _, skip := r.ignored[id]; skip {
			log.Debugw("skipping blacklisted circuit", "id", id)
			continue
		}
		candidates = append(candidates, candidate{id: id, dir: filepath.Join(dir, entry.Name())})
	}
	log.Infow("found circuits to load", "count", len(candidates))

	// Circuits parse independently, so construction runs in parallel. A
	// failure loading one circuit never aborts the others.
	var count atomic.Int64
	g := errgroup.Group{}
	g.SetLimit(loadConcurrency)
	for _, cand := range candidates {
		g.Go(func() error {
			if _, ok := r.lookup(cand.id); ok {
				log.Debugw("circuit already loaded, skipping", "id", cand.id)
				count.Add(1)
				return nil
			}
			circuit, err := r.loadCached(cand.id, cand.dir)
			if err != nil {
				log.Warnw("failed to load circuit", "id", cand.id, "error", err.Error())
				return nil
			}
			r.mu.Lock()
			if _, ok := r.circuits[cand.id]; !ok {
				r.circuits[cand.id] = circuit
				r.metaCache[cand.id] = circuit.Metadata
			}
			r.mu.Unlock()
			count.Add(1)
			log.Debugw("loaded circuit", "id", cand.id, "version", circuit.Metadata.Version)
			return nil
		})
	}
	_ = g.Wait()
	loaded = int(count.Load())

	log.Infow("circuit load complete", "loaded", loaded, "found", len(candidates))
	return loaded, len(candidates), nil
}

// loadCached constructs a circuit, reusing metadata already parsed for the
// same id in a previous load so the metadata file is not re-read.
func (r *Registry) loadCached(id, dir string) (*Circuit, error) {
	r.mu.RLock()
	meta, ok := r.metaCache[id]
	r.mu.RUnlock()
	if ok {
		log.Debugw("using cached metadata", "id", id)
		return NewCircuit(id, dir, meta)
	}
	return LoadCircuit(id, dir)
}

func (r *Registry) lookup(id string) (*Circuit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.circuits[id]
	return c, ok
}

// Get retrieves a circuit by id. Repeated point queries are memoized in a
// bounded LRU cache. A miss returns ok=false, never an error.
func (r *Registry) Get(id string) (*Circuit, bool) {
	if c, ok := r.getCache.Get(id); ok {
		return c, true
	}
	c, ok := r.lookup(id)
	if !ok {
		log.Debugw("circuit not found", "id", id)
		return nil, false
	}
	r.getCache.Add(id, c)
	return c, true
}

// matching returns the circuits accepted by the filter.
func (r *Registry) matching(filter func(*Circuit) bool) []*Circuit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Circuit
	for _, c := range r.circuits {
		if filter(c) {
			out = append(out, c)
		}
	}
	return out
}

// latest picks the circuit with the highest semantic version among the
// matches. Ties on version break deterministically to the lexicographically
// smallest id.
func latest(matches []*Circuit) (*Circuit, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	best := matches[0]
	for _, c := range matches[1:] {
		switch c.Version().Compare(best.Version()) {
		case 1:
			best = c
		case 0:
			if c.ID < best.ID {
				best = c
			}
		}
	}
	return best, true
}

// first picks the circuit with the lexicographically smallest id, making
// exact-match queries deterministic regardless of map iteration order.
func first(matches []*Circuit) (*Circuit, bool) {
	if len(matches) == 0 {
		return nil, false
	}
	best := matches[0]
	for _, c := range matches[1:] {
		if c.ID < best.ID {
			best = c
		}
	}
	return best, true
}

// LatestByNetuid returns the circuit with the highest semantic version among
// those deployed for the given subnet.
func (r *Registry) LatestByNetuid(netuid uint32) (*Circuit, bool) {
	return latest(r.matching(func(c *Circuit) bool {
		return c.Metadata.Netuid != nil && *c.Metadata.Netuid == netuid
	}))
}

// ByNetuidAndWeightsVersion returns the circuit matching both the subnet and
// the weights version exactly.
func (r *Registry) ByNetuidAndWeightsVersion(netuid uint32, weightsVersion uint64) (*Circuit, bool) {
	c, ok := first(r.matching(func(c *Circuit) bool {
		return c.Metadata.Netuid != nil && *c.Metadata.Netuid == netuid &&
			c.Metadata.WeightsVersion == weightsVersion
	}))
	if !ok {
		log.Warnw("no circuit for netuid and weights version",
			"netuid", netuid, "weightsVersion", weightsVersion)
	}
	return c, ok
}

// LatestByName returns the circuit with the highest semantic version among
// those with the given metadata name.
func (r *Registry) LatestByName(name string) (*Circuit, bool) {
	return latest(r.matching(func(c *Circuit) bool {
		return c.Metadata.Name == name
	}))
}

// ByNameAndVersion returns the circuit matching the name and the literal
// version string exactly.
func (r *Registry) ByNameAndVersion(name, version string) (*Circuit, bool) {
	return first(r.matching(func(c *Circuit) bool {
		return c.Metadata.Name == name && c.Metadata.Version == version
	}))
}

// IDs returns the sorted list of loaded circuit ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.circuits))
	for id := range r.circuits {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// CircuitInfo is the JSON-safe projection of a circuit used for API serving.
type CircuitInfo struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Author         string       `json:"author"`
	Version        string       `json:"version"`
	Type           string       `json:"type"`
	ProofSystem    string       `json:"proof_system"`
	Netuid         *uint32      `json:"netuid"`
	TestnetNetuids []uint32     `json:"testnet_netuids"`
	WeightsVersion uint64       `json:"weights_version"`
	InputSchema    *InputSchema `json:"input_schema"`
}

func infoFor(c *Circuit) CircuitInfo {
	info := CircuitInfo{
		ID:             c.ID,
		Name:           c.Metadata.Name,
		Description:    c.Metadata.Description,
		Author:         c.Metadata.Author,
		Version:        c.Metadata.Version,
		Type:           c.Metadata.Type,
		ProofSystem:    c.Metadata.ProofSystem,
		Netuid:         c.Metadata.Netuid,
		WeightsVersion: c.Metadata.WeightsVersion,
		InputSchema:    c.Metadata.InputSchema,
	}
	if c.Metadata.Netuid != nil {
		info.TestnetNetuids = config.TestnetNetuidsFor(*c.Metadata.Netuid)
	}
	return info
}

// Info returns the JSON-safe projection of a single circuit.
func (r *Registry) Info(id string) (CircuitInfo, bool) {
	c, ok := r.Get(id)
	if !ok {
		return CircuitInfo{}, false
	}
	return infoFor(c), true
}

// MetadataList returns the metadata snapshot for every loaded circuit,
// sorted by id, with each mainnet netuid mapped to its testnet counterparts.
// It never mutates registry state and is safe to call concurrently with
// LoadFromDir.
func (r *Registry) MetadataList() []CircuitInfo {
	r.mu.RLock()
	infos := make([]CircuitInfo, 0, len(r.circuits))
	for _, c := range r.circuits {
		infos = append(infos, infoFor(c))
	}
	r.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// ClearCache empties the metadata cache and the point-lookup cache. Loaded
// circuits remain in the registry.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	r.metaCache = make(map[string]Metadata)
	r.mu.Unlock()
	r.getCache.Purge()
	log.Info("circuit registry caches cleared")
}
