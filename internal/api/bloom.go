package api

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 访客去重位图参数：每日一个 key，约 1M 位、4 次哈希
const (
	visitorBloomBits   = 1 << 20
	visitorBloomHashes = 4
	visitorBloomTTL    = 48 * time.Hour
)

// 文档注释：计算布隆过滤器位置
// 参数：data 为参与哈希的字节序列，m 为位图大小，k 为哈希次数。
// 背景：使用 FNV64a 结合索引扰动生成 k 个位置，用于 GetBit/SetBit。
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

// 位图存取：生产环境由 Redis GETBIT/SETBIT 实现
type bitmap interface {
	GetBit(ctx context.Context, key string, offset int64) (int64, error)
	SetBits(ctx context.Context, key string, offsets []int64, ttl time.Duration) error
}

type redisBitmap struct{ rc *redis.Client }

func (b redisBitmap) GetBit(ctx context.Context, key string, offset int64) (int64, error) {
	return b.rc.GetBit(ctx, key, offset).Result()
}

func (b redisBitmap) SetBits(ctx context.Context, key string, offsets []int64, ttl time.Duration) error {
	pipe := b.rc.Pipeline()
	for _, p := range offsets {
		pipe.SetBit(ctx, key, p, 1)
	}
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// 文档注释：检查并写入布隆过滤器位图
// 返回：true 表示首次见到（已写入位图）；false 表示已存在。
// 异常：位图交互错误时返回 error；bm 为 nil（未启用 Redis）时返回 false，不做访客计数。
func bloomCheckAndSet(ctx context.Context, bm bitmap, key string, positions []int64, ttl time.Duration) (bool, error) {
	if bm == nil {
		return false, nil
	}
	seen := true
	for _, p := range positions {
		b, err := bm.GetBit(ctx, key, p)
		if err != nil {
			return false, err
		}
		if b == 0 {
			seen = false
		}
	}
	if seen {
		return false, nil
	}
	if err := bm.SetBits(ctx, key, positions, ttl); err != nil {
		return true, err
	}
	return true, nil
}

func visitorKey(now time.Time) string {
	return "oqt:visitors:" + now.UTC().Format("20060102")
}
