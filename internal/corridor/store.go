package corridor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store 走廊草稿的持久化存储
type Store interface {
	Save(state State) error
	Load() (*State, bool, error)
	Clear() error
}

// persistedState 带时间戳的落盘结构，超过 TTL 的草稿在加载时丢弃
type persistedState struct {
	State   State     `json:"state"`
	SavedAt time.Time `json:"saved_at"`
}

// MemoryStore 内存存储（测试与单进程场景）
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock func() time.Time
	data  *persistedState
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, clock: time.Now}
}

// Save 保存草稿
func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = &persistedState{State: state, SavedAt: s.clock()}
	return nil
}

// Load 读取草稿，超过 TTL 时返回未命中
func (s *MemoryStore) Load() (*State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, false, nil
	}
	if s.ttl > 0 && s.clock().Sub(s.data.SavedAt) > s.ttl {
		s.data = nil
		return nil, false, nil
	}
	state := s.data.State
	return &state, true, nil
}

// Clear 清除草稿
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}

// FileStore JSON 文件存储，对应浏览器端 localStorage 语义
type FileStore struct {
	mu    sync.Mutex
	path  string
	ttl   time.Duration
	clock func() time.Time
}

// NewFileStore 创建文件存储
func NewFileStore(path string, ttl time.Duration) *FileStore {
	return &FileStore{path: path, ttl: ttl, clock: time.Now}
}

// Save 保存草稿到文件
func (s *FileStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := json.Marshal(persistedState{State: state, SavedAt: s.clock()})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load 读取草稿，文件缺失或超过 TTL 时返回未命中
func (s *FileStore) Load() (*State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var persisted persistedState
	if err := json.Unmarshal(payload, &persisted); err != nil {
		// 损坏的草稿当作未命中处理
		return nil, false, nil
	}
	if s.ttl > 0 && s.clock().Sub(persisted.SavedAt) > s.ttl {
		_ = os.Remove(s.path)
		return nil, false, nil
	}
	state := persisted.State
	return &state, true, nil
}

// Clear 删除草稿文件
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
