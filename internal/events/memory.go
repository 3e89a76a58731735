package events

import (
	"context"
	"sync"
)

// MemoryBus синхронная шина в процессе: Publish вызывает подписчиков по очереди.
// Используется без NATS и в тестах.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewMemoryBus создаёт шину в памяти
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Subscribe регистрирует обработчик для всех событий
func (b *MemoryBus) Subscribe(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish доставляет событие всем подписчикам
func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, evt)
	}
	return nil
}

// Close ничего не держит, нужен для общего интерфейса с NATS
func (b *MemoryBus) Close() error {
	return nil
}
