package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EpochKey guarda a geração atual do ranking; Invalidate incrementa
const EpochKey = "leaderboard:epoch"

// CacheKey é a chave Redis do ranking de uma geração
func CacheKey(epoch int64) string {
	return fmt.Sprintf("leaderboard:%d", epoch)
}

// CachedRanker guarda o ranking no Redis com TTL
// Falhas do Redis não impedem a leitura: cai direto no Next
type CachedRanker struct {
	Client redis.Cmdable
	Next   Ranker
	TTL    time.Duration
	Log    *zap.Logger
}

// NewCachedRanker cria o ranker com cache
func NewCachedRanker(c redis.Cmdable, next Ranker, ttl time.Duration, log *zap.Logger) *CachedRanker {
	return &CachedRanker{Client: c, Next: next, TTL: ttl, Log: log}
}

// Rank devolve o ranking do cache ou recalcula e salva.
// O valor é gravado na geração lida antes do cálculo: se uma pontuação
// invalidar no meio, a gravação cai numa chave que ninguém mais lê.
func (c *CachedRanker) Rank(ctx context.Context) ([]Row, error) {
	epoch, err := c.Client.Get(ctx, EpochKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.warn("leaderboard epoch get failed", err)
		return c.Next.Rank(ctx)
	}
	key := CacheKey(epoch)

	b, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []Row
		jerr := json.Unmarshal(b, &rows)
		if jerr == nil {
			return rows, nil
		}
		c.warn("leaderboard cache decode failed", jerr)
	case !errors.Is(err, redis.Nil):
		c.warn("leaderboard cache get failed", err)
	}

	rows, err := c.Next.Rank(ctx)
	if err != nil {
		return nil, err
	}

	if b, jerr := json.Marshal(rows); jerr == nil {
		if serr := c.Client.Set(ctx, key, b, c.TTL).Err(); serr != nil {
			c.warn("leaderboard cache set failed", serr)
		}
	}
	return rows, nil
}

// Invalidate avança a geração do ranking (após uma pontuação)
func (c *CachedRanker) Invalidate(ctx context.Context) error {
	return c.Client.Incr(ctx, EpochKey).Err()
}

func (c *CachedRanker) warn(msg string, err error) {
	if c.Log != nil {
		c.Log.Warn(msg, zap.Error(err))
	}
}
