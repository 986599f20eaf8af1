// Package sse fans poll results out to browsers over server-sent events.
package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	EventResult = "result"
	EventPing   = "ping"
)

type Subscriber chan []byte

type Hub struct {
	mu          sync.Mutex
	subscribers map[Subscriber]bool
	last        []byte
	closed      bool
	buffer      int
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subscribers: make(map[Subscriber]bool), buffer: 10, logger: logger}
}

// Subscribe 新增一个客户端；若已有结果则先放入最近一次的推送
func (h *Hub) Subscribe() Subscriber {
	ch := make(Subscriber, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	if h.last != nil {
		ch <- h.last
	}
	h.subscribers[ch] = true
	return ch
}

// Unsubscribe 断开连接；已被 Broadcast 剔除的订阅者不会重复关闭
func (h *Hub) Unsubscribe(ch Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[ch] {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast 推送消息给所有连接
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for ch := range h.subscribers {
		select {
		case ch <- data:
		default:
			// 队列满则剔除
			h.logger.Warn("subscriber channel full, removing")
			delete(h.subscribers, ch)
			close(ch)
		}
	}
}

// Close 关闭所有连接，之后的订阅立即结束
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}

// Publish encodes v as JSON and broadcasts it.
func (h *Hub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode sse payload", zap.Error(err))
		return
	}
	h.Broadcast(data)
}
