package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockWait  = 5 * time.Second
	lockPollInterval = 25 * time.Millisecond
	lockKeyPrefix    = "trashinator:lock:"
)

// ErrLockTimeout 在等待锁超时时返回
var ErrLockTimeout = errors.New("timed out waiting for lock")

// ErrMiss 表示缓存中没有对应的键
var ErrMiss = errors.New("cache miss")

// 仅当锁仍由自己持有时才删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisService 封装 Redis 上的 JSON 缓存与分布式锁
type RedisService struct {
	Client   *redis.Client
	Ctx      context.Context
	LockTTL  time.Duration
	LockWait time.Duration
}

// NewRedisService 创建 Redis 服务
func NewRedisService(addr string, database int) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   database,
	})

	return &RedisService{
		Client:   client,
		Ctx:      context.Background(),
		LockTTL:  defaultLockTTL,
		LockWait: defaultLockWait,
	}
}

// Ping 检查连接是否可用
func (s *RedisService) Ping() error {
	return s.Client.Ping(s.Ctx).Err()
}

// Close 关闭底层连接
func (s *RedisService) Close() error {
	return s.Client.Close()
}

// Set 以 JSON 形式写入，expiration 为 0 表示不过期
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get 读取 JSON 并解码到 dest，键不存在时返回 ErrMiss
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete 删除键
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// Acquire 获取名为 key 的锁，返回的 release 只会释放自己持有的锁。
// 锁带有 LockTTL，持有者崩溃后会自动过期。
func (s *RedisService) Acquire(key string) (func(), error) {
	lockKey := LockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(s.LockWait)

	for {
		ok, err := s.Client.SetNX(s.Ctx, lockKey, token, s.LockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		time.Sleep(lockPollInterval)
	}

	return func() {
		releaseScript.Run(s.Ctx, s.Client, []string{lockKey}, token)
	}, nil
}

// LockKey 返回锁在 Redis 中的完整键名
func LockKey(key string) string {
	return lockKeyPrefix + key
}
