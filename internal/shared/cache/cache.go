package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis abre o cliente e valida a conexão com PING
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

// ErrLockNotAcquired indica que o lock não foi obtido antes do contexto expirar
var ErrLockNotAcquired = errors.New("lock not acquired")

// releaseScript só apaga a chave se o token ainda for o nosso
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker é um lock distribuído simples (SET NX PX) para vários processos
// TTL limita quanto tempo um processo morto segura a chave
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration // intervalo entre tentativas
}

// NewRedisLocker cria o locker com TTL e intervalo de retry padrão
func NewRedisLocker(c *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{Client: c, TTL: ttl, Retry: 100 * time.Millisecond}
}

// Lock tenta obter a chave até conseguir ou o contexto ser cancelado
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	retry := l.Retry
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, key, ctx.Err())
		case <-time.After(retry):
		}
	}

	return func() {
		// contexto próprio: o unlock precisa rodar mesmo com ctx cancelado
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.Client, []string{key}, token).Err()
	}, nil
}
