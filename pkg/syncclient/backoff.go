package syncclient

import "time"

// backoff 指數退避：1s 起跳，翻倍到 30s 封頂
type backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{
		base: time.Second,
		max:  30 * time.Second,
	}
}

// Next 取下一次等待時間並推進
func (b *backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.base
		return b.current
	}
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return b.current
}

// Reset 連線成功後歸零
func (b *backoff) Reset() {
	b.current = 0
}
