package kvstore

import (
	"bytes"
	"context"
	"sync"
)

// Memory is an in-process store; nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	quota int64
	usage int64
	data  map[string][]byte
}

func NewMemory(quota int64) *Memory {
	return &Memory{quota: quota, data: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := int64(len(m.data[key]))
	if err := checkQuota(m.quota, m.usage, old, int64(len(value))); err != nil {
		return err
	}
	m.data[key] = bytes.Clone(value)
	m.usage += int64(len(value)) - old
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage -= int64(len(m.data[key]))
	delete(m.data, key)
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	m.usage = 0
	return nil
}

func (m *Memory) Close() error { return nil }
