package cache

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"shortlink.local/internal/app/shortlink"
)

// BloomFilter 记录已占用的短码，供生成器在查库前跳过“可能已存在”的候选。
// 只会误报不会漏报；最终是否冲突仍以存储为准。
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

var _ shortlink.CodeSet = (*BloomFilter)(nil)

// CodeSource 能流式遍历全部已有短码（两种仓储都实现了）。
type CodeSource interface {
	Codes(ctx context.Context, fn func(code string)) error
}

// NewBloomFilter 创建布隆过滤器
// expectedItems: 预期存储的元素数量
// falsePositiveRate: 误判率（建议 0.01 即 1%）
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (b *BloomFilter) Add(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(code)
}

// MightExist 返回 false 表示一定不存在，true 表示可能存在。
func (b *BloomFilter) MightExist(code string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(code)
}

// Count 返回已添加的元素数量（估算）
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}

// Load 启动时用存储里的全部短码预热，返回加载条数。
func (b *BloomFilter) Load(ctx context.Context, src CodeSource) (int, error) {
	n := 0
	err := src.Codes(ctx, func(code string) {
		b.Add(code)
		n++
	})
	return n, err
}
