// Package lock: блокировка обработки одного RMA: внутри процесса или через Redis.
package lock

import (
	"context"
	"sync"
)

// Locker захватывает блокировку по ключу. Возвращаемая функция освобождает её;
// повторный вызов безопасен.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Local: мьютекс по ключу для одного экземпляра сервиса. Записи удаляются,
// когда ключ никому не нужен.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return sync.OnceFunc(func() {
			<-e.ch
			l.release(key, e)
		}), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}
