package retry

import (
	"context"
	"sync"
	"time"
)

// memoryStore 单机内存存储。
// 记录数量与幂等键基数相当且自带 TTL，采用锁 + 惰性过期，
// 不做后台扫描。
type memoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

type memoryRecord struct {
	rec      *Record
	expireAt time.Time
}

func newMemoryStore() Store {
	return &memoryStore{
		records: make(map[string]*memoryRecord),
	}
}

// getLocked 返回未过期的记录，过期记录顺手删除。调用方须持锁。
func (s *memoryStore) getLocked(key string, now time.Time) (*Record, bool) {
	mr, ok := s.records[key]
	if !ok {
		return nil, false
	}
	if now.After(mr.expireAt) {
		delete(s.records, key)
		return nil, false
	}
	return mr.rec, true
}

func (s *memoryStore) Claim(ctx context.Context, key string, rec *Record, ttl time.Duration) (bool, *Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.getLocked(key, now); ok {
		return false, existing, nil
	}

	s.records[key] = &memoryRecord{
		rec:      rec,
		expireAt: now.Add(ttl),
	}
	return true, nil, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.getLocked(key, time.Now())
	return rec, ok, nil
}

func (s *memoryStore) Settle(ctx context.Context, key string, token string, rec *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, ok := s.getLocked(key, now)
	if !ok || existing.Token != token {
		return ErrClaimLost
	}

	s.records[key] = &memoryRecord{
		rec:      rec,
		expireAt: now.Add(ttl),
	}
	return nil
}

func (s *memoryStore) Release(ctx context.Context, key string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.getLocked(key, time.Now()); ok && existing.Token == token {
		delete(s.records, key)
	}
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
