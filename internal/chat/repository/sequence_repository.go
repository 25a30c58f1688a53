package repository

import (
	"context"
	"fmt"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 段內原子發號：KEYS[1]=key; ARGV[1]=need; ARGV[2]=segEnd; ARGV[3]=nowMs
// 回傳：{0,start,0,end,nowMs} 成功；{1} 無段；{3,curr,end,0,nowMs} 用盡/段不一致
var luaInSegment = redis.NewScript(`
  local k = KEYS[1]
  local need = tonumber(ARGV[1])
  local segEnd = tonumber(ARGV[2])
  local nowms = tonumber(ARGV[3])

  local curr = redis.call('HGET', k, 'curr')
  local endv = redis.call('HGET', k, 'end')
  if not curr or not endv then
    return {1}
  end
  curr = tonumber(curr); endv = tonumber(endv)

  if segEnd ~= 0 and segEnd ~= endv then
    return {3, curr, endv, 0, nowms}
  end

  local start = curr + 1
  local newv  = curr + need
  if newv > endv then
    return {3, curr, endv, 0, nowms}
  end
  redis.call('HSET', k, 'curr', newv, 'mill', nowms)
  -- 活躍商戶每次發號都把 TTL 往後推，段不會在使用中過期掉剩餘的號
  redis.call('PEXPIRE', k, 3600000)
  return {0, start, 0, endv, nowms}
`)

// 裝載/刷新段：curr=start-1, end=end, mill=nowMs，並設 TTL 讓冷商戶自然過期
var luaSetSegment = redis.NewScript(`
  local k = KEYS[1]
  local curr = tonumber(ARGV[1])
  local endv = tonumber(ARGV[2])
  local nowms= tonumber(ARGV[3])
  redis.call('HSET', k, 'curr', curr, 'end', endv, 'mill', nowms)
  redis.call('PEXPIRE', k, 3600000)
  return 1
`)

// SequenceRepository 以商戶為範圍發放單調遞增的 sequenceId。
// 同一商戶兩次呼叫不會回傳相同值；發號狀態不確定時回錯誤，
// 呼叫端必須讓該次寫入失敗，不可自行猜號。
type SequenceRepository interface {
	// Next 取得 shopID 範圍內的下一個 sequenceId
	Next(ctx context.Context, shopID string) (int64, error)
}

type seqRepository struct {
	rdb      *redis.Client
	coll     *mongo.Collection
	block    int64
	maxRetry int
}

// NewSequenceRepository create a SequenceRepository
// blockSize <= 0 時使用預設段長 256
func NewSequenceRepository(rdb *redis.Client, db *mongo.Database, blockSize int64) SequenceRepository {
	if blockSize <= 0 {
		blockSize = 256
	}
	return &seqRepository{
		rdb:      rdb,
		coll:     db.Collection("seq_shops"),
		block:    blockSize,
		maxRetry: 10,
	}
}

func seqKey(shopID string) string { return "seq:blk:" + shopID }

// Next 先嘗試 redis 段內發號，段用盡或不存在時回源 mongo 領新段再發
func (r *seqRepository) Next(ctx context.Context, shopID string) (int64, error) {
	nowms := time.Now().UnixMilli()
	key := seqKey(shopID)

	// 1) 先嘗試在現有段內發號
	if res, e := luaInSegment.Run(ctx, r.rdb, []string{key}, 1, 0, nowms).Result(); e == nil {
		arr := res.([]interface{})
		switch arr[0].(int64) {
		case 0:
			return arr[1].(int64), nil
		case 1, 3:
			// 無段 / 段用盡 -> 回源
		default:
			return 0, fmt.Errorf("sequence allocator unknown redis state %v", arr[0])
		}
	}

	// 2) 回源 Mongo 領段 -> 寫回 Redis -> 再嘗試段內發號
	var lastErr error
	for i := 0; i < r.maxRetry; i++ {
		segStart, segEnd, e := r.allocSegment(ctx, shopID)
		if e != nil {
			lastErr = e
			break
		}

		if _, e = luaSetSegment.Run(ctx, r.rdb, []string{key}, segStart-1, segEnd, nowms).Result(); e != nil {
			lastErr = e
			time.Sleep(10 * time.Millisecond)
			continue
		}

		res2, e := luaInSegment.Run(ctx, r.rdb, []string{key}, 1, segEnd, nowms).Result()
		if e != nil {
			lastErr = e
			time.Sleep(10 * time.Millisecond)
			continue
		}
		arr := res2.([]interface{})
		if arr[0].(int64) == 0 {
			return arr[1].(int64), nil
		}
		// 段衝突（其他實例同時領段），小憩後重試
		time.Sleep(5 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = domain.ErrSequenceExhausted
	}
	logger.Log.Errorf("sequence alloc failed shop="+shopID+":", lastErr)
	return 0, lastErr
}

// allocSegment 原子從 Mongo 領一段：issued_seq += block，回傳 [start,end]
func (r *seqRepository) allocSegment(ctx context.Context, shopID string) (start, end int64, err error) {
	now := time.Now()

	filter := bson.M{"shop_id": shopID}
	update := bson.M{
		"$inc":         bson.M{"issued_seq": r.block},
		"$setOnInsert": bson.M{"created_at": now},
		"$set":         bson.M{"updated_at": now},
	}

	var before struct {
		IssuedSeq int64 `bson:"issued_seq"`
	}
	err = r.coll.FindOneAndUpdate(
		ctx, filter, update,
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.Before),
	).Decode(&before)
	if err != nil && err != mongo.ErrNoDocuments {
		return 0, 0, err
	}
	old := before.IssuedSeq // 不存在時視為 0
	return old + 1, old + r.block, nil
}
