package syncclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// CursorStore 游標持久化，key 為 (shopId, userId)。
// 掛件端的 localStorage 對應物。
type CursorStore interface {
	Load(shopID, userID string) (int64, error)
	Save(shopID, userID string, cursor int64) error
}

// MemoryCursorStore 純記憶體（測試或單次行程）
type MemoryCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]int64
}

// NewMemoryCursorStore create MemoryCursorStore
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{cursors: make(map[string]int64)}
}

func cursorKey(shopID, userID string) string { return shopID + "|" + userID }

// Load get cursor
func (s *MemoryCursorStore) Load(shopID, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[cursorKey(shopID, userID)], nil
}

// Save set cursor
func (s *MemoryCursorStore) Save(shopID, userID string, cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursorKey(shopID, userID)] = cursor
	return nil
}

// FileCursorStore 單一 JSON 檔，整檔讀寫（游標量小，不值得上 DB）
type FileCursorStore struct {
	mu   sync.Mutex
	path string
}

// NewFileCursorStore create FileCursorStore
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (s *FileCursorStore) read() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{}, nil
		}
		return nil, err
	}
	m := map[string]int64{}
	if err := json.Unmarshal(data, &m); err != nil {
		// 檔案壞掉視同沒有游標，從頭拉回來再靠去重
		return map[string]int64{}, nil
	}
	return m, nil
}

// Load get cursor
func (s *FileCursorStore) Load(shopID, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return 0, err
	}
	return m[cursorKey(shopID, userID)], nil
}

// Save set cursor，寫暫存檔再 rename
func (s *FileCursorStore) Save(shopID, userID string, cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	m[cursorKey(shopID, userID)] = cursor

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
