package shift

import (
	"context"
	"sync"
)

// Locker candado exclusivo por clave (turno o caja). Claves distintas nunca compiten.
// La espera respeta el ctx, de modo que ninguna operación bloquea indefinidamente.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocker construye el candado.
func NewLocker() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Lock adquiere la clave o devuelve ctx.Err() si vence antes. La función devuelta libera
// el candado y es segura de llamar más de una vez.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}
}

func (l *Locker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size claves activas (para tests).
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
