package cachestore

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMemorySize = 4096

// Memory is a bounded in-process Store backed by an LRU cache. Writes are
// insert-if-absent: an existing entry is never replaced.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries}, nil
}

func (m *Memory) Get(namespace, key string) ([]byte, bool) {
	return m.entries.Get(namespace + "/" + key)
}

func (m *Memory) Set(namespace, key string, value []byte) {
	k := namespace + "/" + key
	if m.entries.Contains(k) {
		return
	}
	m.entries.Add(k, value)
}
