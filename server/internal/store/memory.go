package store

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

// Memory is a thread-safe in-process Backend. Sorted sets are kept as
// member→score maps and ordered on read; plain keys exist only so the sweep
// has something to match against.
type Memory struct {
	mu     sync.RWMutex
	sets   map[string]map[string]float64
	values map[string]string
	closed bool
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		sets:   make(map[string]map[string]float64),
		values: make(map[string]string),
	}
}

// Set stores a plain string value at key.
func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Exists reports whether key holds a plain value or a non-empty set.
func (m *Memory) Exists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.values[key]; ok {
		return true
	}
	return len(m.sets[key]) > 0
}

func (m *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]float64)
		m.sets[key] = set
	}
	set[member] = score
	return nil
}

func (m *Memory) ZRemRangeByScore(_ context.Context, key string, max float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	set := m.sets[key]
	var removed int64
	for member, score := range set {
		if score <= max {
			delete(set, member)
			removed++
		}
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
	return removed, nil
}

func (m *Memory) ZRevRange(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	set := m.sets[key]
	type scored struct {
		member string
		score  float64
	}
	all := make([]scored, 0, len(set))
	for member, score := range set {
		all = append(all, scored{member, score})
	}
	// Redis orders equal scores lexicographically; the reverse range flips that too.
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].member > all[j].member
	})
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.member
	}
	return out, nil
}

func (m *Memory) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return int64(len(m.sets[key])), nil
}

func (m *Memory) DeleteMatching(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	var removed int64
	for key := range m.values {
		if globMatch(pattern, key) {
			delete(m.values, key)
			removed++
		}
	}
	for key := range m.sets {
		if globMatch(pattern, key) {
			delete(m.sets, key)
			removed++
		}
	}
	return removed, nil
}

// slashFree maps '/' to a byte path.Match treats as ordinary.
var slashFree = strings.NewReplacer("/", "\x00")

// globMatch matches key against a Redis-style glob. path.Match stops * and ?
// at '/', which Redis MATCH and SQLite GLOB do not.
func globMatch(pattern, key string) bool {
	ok, _ := path.Match(slashFree.Replace(pattern), slashFree.Replace(key))
	return ok
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the backend closed; every later call returns ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
