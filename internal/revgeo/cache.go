package revgeo

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：轨迹结果 LRU 缓存（内容摘要为键）
// 背景：同一 GPX 文件常被重复提交，整条轨迹的解析结果在进程内缓存，TTL 可调。
// 约束：键由调用方构造（建议 SHA-256 十六进制）；容量 <=0 时缓存关闭。
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
	now  func() time.Time
}

type lruEntry struct {
	k   string
	v   TrackResult
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element), now: time.Now}
}

func (c *LRU) Get(k string) (TrackResult, bool) {
	if c == nil || c.cap <= 0 {
		return TrackResult{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dict[k]
	if !ok {
		return TrackResult{}, false
	}
	it := e.Value.(lruEntry)
	if c.now().Before(it.exp) {
		c.lst.MoveToFront(e)
		return it.v, true
	}
	c.lst.Remove(e)
	delete(c.dict, k)
	return TrackResult{}, false
}

func (c *LRU) Set(k string, v TrackResult) {
	if c == nil || c.cap <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	exp := c.now().Add(c.ttl)
	if e, ok := c.dict[k]; ok {
		e.Value = lruEntry{k: k, v: v, exp: exp}
		c.lst.MoveToFront(e)
		return
	}
	c.dict[k] = c.lst.PushFront(lruEntry{k: k, v: v, exp: exp})
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(lruEntry).k)
		c.lst.Remove(back)
	}
}

func (c *LRU) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}
