package scoring

import (
	"context"
	"fmt"
	"sync"
)

// Locker garante exclusão mútua por chave (uma partida por vez)
// unlock deve ser chamado exatamente uma vez após sucesso
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MatchLockKey gera a chave de lock de pontuação da partida
func MatchLockKey(matchID int64) string { return fmt.Sprintf("scoring:match:%d", matchID) }

// LocalLocker é um mutex por chave dentro do processo
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker cria um LocalLocker vazio
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock bloqueia até obter a chave ou o contexto ser cancelado
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*keyLock)
	}
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}
}

// release remove a chave do mapa quando ninguém mais a referencia
func (l *LocalLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
