package syncclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// 檔案游標：跨 store 實例讀回同一個值
func TestFileCursorStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")

	s1 := NewFileCursorStore(path)
	assert.NoError(t, s1.Save("shop_1", "user_1", 42))
	assert.NoError(t, s1.Save("shop_1", "user_2", 7))

	s2 := NewFileCursorStore(path)
	cur, err := s2.Load("shop_1", "user_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), cur)

	cur, err = s2.Load("shop_1", "user_2")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), cur)
}

// 檔案不存在視為游標 0
func TestFileCursorStore_Missing(t *testing.T) {
	s := NewFileCursorStore(filepath.Join(t.TempDir(), "nope.json"))
	cur, err := s.Load("shop_1", "user_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), cur)
}

// 檔案壞掉視同沒有游標，不報錯（重拉靠去重）
func TestFileCursorStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewFileCursorStore(path)
	cur, err := s.Load("shop_1", "user_1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), cur)
}

func TestBackoff(t *testing.T) {
	b := newBackoff()
	assert.Equal(t, "1s", b.Next().String())
	assert.Equal(t, "2s", b.Next().String())
	assert.Equal(t, "4s", b.Next().String())
	b.current = 20 * time.Second
	assert.Equal(t, "30s", b.Next().String())
	assert.Equal(t, "30s", b.Next().String())

	b.Reset()
	assert.Equal(t, "1s", b.Next().String())
}
