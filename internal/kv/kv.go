// Package kv is the small per-user key-value state the phone keeps locally
// and shares with the home-screen widget.
package kv

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type Key string

const (
	IsSleepingRightNow Key = "isSleepingRightNow"
	IsFirstTime        Key = "isFirstTime"
	BedTimeGoal        Key = "bedTimeGoal"
	WakeTimeGoal       Key = "wakeTimeGoal"
	Username           Key = "username"
)

var knownKeys = map[Key]bool{
	IsSleepingRightNow: true,
	IsFirstTime:        true,
	BedTimeGoal:        true,
	WakeTimeGoal:       true,
	Username:           true,
}

func (k Key) Valid() bool { return knownKeys[k] }

// Store returns ("", false, nil) for keys that were never written.
type Store interface {
	Get(ctx context.Context, userID string, key Key) (string, bool, error)
	Set(ctx context.Context, userID string, key Key, value string) error
	Delete(ctx context.Context, userID string, key Key) error
	All(ctx context.Context, userID string) (map[Key]string, error)
}

func checkKey(key Key) error {
	if !key.Valid() {
		return fmt.Errorf("kv: unknown key %q", key)
	}
	return nil
}

func GetBool(ctx context.Context, s Store, userID string, key Key) (bool, error) {
	v, ok, err := s.Get(ctx, userID, key)
	if err != nil || !ok {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("kv: %s is not a bool: %w", key, err)
	}
	return b, nil
}

func SetBool(ctx context.Context, s Store, userID string, key Key, v bool) error {
	return s.Set(ctx, userID, key, strconv.FormatBool(v))
}

type Memory struct {
	mu   sync.RWMutex
	data map[string]map[Key]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[Key]string)}
}

func (m *Memory) Get(ctx context.Context, userID string, key Key) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[userID][key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, userID string, key Key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[userID] == nil {
		m.data[userID] = make(map[Key]string)
	}
	m.data[userID][key] = value
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID string, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[userID], key)
	return nil
}

func (m *Memory) All(ctx context.Context, userID string) (map[Key]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Key]string, len(m.data[userID]))
	for k, v := range m.data[userID] {
		out[k] = v
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
