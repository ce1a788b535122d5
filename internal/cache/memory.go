package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// KeyedMutex 是进程内按键加锁的实现，未配置 Redis 时使用
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex 构造 KeyedMutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Acquire 阻塞直到获得 key 对应的锁
func (k *KeyedMutex) Acquire(key string) (func(), error) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()

			k.mu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}, nil
}

type memoryEntry struct {
	val []byte
	exp time.Time
}

// Memory 是进程内的 JSON 缓存，接口与 RedisService 的 Get/Set 一致
type Memory struct {
	mu sync.RWMutex
	m  map[string]memoryEntry
}

// NewMemory 构造 Memory
func NewMemory() *Memory {
	return &Memory{m: make(map[string]memoryEntry)}
}

// Set 写入值，expiration 为 0 表示不过期
func (c *Memory) Set(key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{val: raw}
	if expiration > 0 {
		entry.exp = time.Now().Add(expiration)
	}

	c.mu.Lock()
	c.m[key] = entry
	c.mu.Unlock()
	return nil
}

// Get 读取值，不存在或已过期时返回 ErrMiss
func (c *Memory) Get(key string, dest interface{}) error {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || (!entry.exp.IsZero() && time.Now().After(entry.exp)) {
		return ErrMiss
	}
	return json.Unmarshal(entry.val, dest)
}

// Delete 删除键
func (c *Memory) Delete(key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}
