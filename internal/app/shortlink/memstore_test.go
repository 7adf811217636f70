package shortlink

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// memStore 是测试用的内存 Store，语义与 repo 包的 SQL 实现保持一致。
type memStore struct {
	mu     sync.Mutex
	nextID int64
	links  map[string]Link
	now    func() time.Time

	// 故障注入
	failFind        error
	failRecordVisit error
	failDelete      map[string]error
	insertConflicts int // 前 N 次 Insert 返回 ErrConstraintViolation
	insertCalls     int
	recordVisits    int
}

func newMemStore() *memStore {
	return &memStore{links: make(map[string]Link), now: time.Now}
}

func (m *memStore) Insert(_ context.Context, nl NewLink) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertConflicts > 0 {
		m.insertConflicts--
		return Link{}, ErrConstraintViolation
	}
	if _, ok := m.links[nl.Code]; ok {
		return Link{}, ErrConstraintViolation
	}
	m.nextID++
	l := Link{
		ID:          m.nextID,
		Code:        nl.Code,
		OriginalURL: nl.OriginalURL,
		CustomAlias: nl.CustomAlias,
		CreatedAt:   m.now(),
		ExpiresAt:   nl.ExpiresAt,
		OwnerID:     nl.OwnerID,
	}
	m.links[l.Code] = l
	return l, nil
}

func (m *memStore) FindByCode(_ context.Context, code string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind != nil {
		return Link{}, m.failFind
	}
	l, ok := m.links[code]
	if !ok {
		return Link{}, ErrNotFound
	}
	return l, nil
}

func (m *memStore) FindByAlias(_ context.Context, alias string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.links[alias]; ok && l.CustomAlias {
		return l, nil
	}
	return Link{}, ErrNotFound
}

func (m *memStore) FindByURL(_ context.Context, url string) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Link
	for _, l := range m.links {
		if l.OriginalURL == url && (best == nil || l.ID < best.ID) {
			l := l
			best = &l
		}
	}
	if best == nil {
		return Link{}, ErrNotFound
	}
	return *best, nil
}

func (m *memStore) Exists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind != nil {
		return false, m.failFind
	}
	_, ok := m.links[code]
	return ok, nil
}

func (m *memStore) Update(_ context.Context, code string, u LinkUpdate) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[code]
	if !ok {
		return Link{}, ErrNotFound
	}
	if u.OriginalURL != nil {
		l.OriginalURL = *u.OriginalURL
	}
	if u.ExpiresAt != nil {
		l.ExpiresAt = u.ExpiresAt
	}
	m.links[code] = l
	return l, nil
}

func (m *memStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDelete[code]; err != nil {
		return err
	}
	if _, ok := m.links[code]; !ok {
		return ErrNotFound
	}
	delete(m.links, code)
	return nil
}

func (m *memStore) FindUnusedSince(_ context.Context, cutoff time.Time) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Link
	for _, l := range m.links {
		last := l.CreatedAt
		if l.LastVisited != nil {
			last = *l.LastVisited
		}
		if last.Before(cutoff) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) RecordVisit(_ context.Context, code string, at time.Time) (Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecordVisit != nil {
		return Link{}, m.failRecordVisit
	}
	l, ok := m.links[code]
	if !ok {
		return Link{}, ErrNotFound
	}
	m.recordVisits++
	l.VisitCount++
	l.LastVisited = &at
	m.links[code] = l
	return l, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64, urlContains string) ([]Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Link
	for _, l := range m.links {
		if l.OwnedBy(ownerID) && strings.Contains(l.OriginalURL, urlContains) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// put 直接写入一条记录，绕过服务层。
func (m *memStore) put(l Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	l.ID = m.nextID
	m.links[l.Code] = l
}

func (m *memStore) get(code string) (Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[code]
	return l, ok
}

// mapCache 是同步的内存 Cache，可注入故障。
type mapCache struct {
	mu          sync.Mutex
	entries     map[string]string
	failGet     error
	failSet     error
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, code string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return "", false, c.failGet
	}
	url, ok := c.entries[code]
	return url, ok, nil
}

func (c *mapCache) Set(_ context.Context, code, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return c.failSet
	}
	c.entries[code] = url
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

func (c *mapCache) has(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[code]
	return ok
}
