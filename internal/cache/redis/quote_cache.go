package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharpline/valuebot/internal/domain"
)

// quoteTTL evicts mirrored quotes that stop updating; the odds book is the
// source of truth, the mirror only serves external tooling.
const quoteTTL = 10 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. Each market is
// a hash at "quote:{dedupKey}" with fields "sharp", "soft" and per-source
// timestamps.
type QuoteCache struct {
	rdb *redis.Client
}

var _ domain.QuoteCache = (*QuoteCache)(nil)

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(key string) string {
	return "quote:" + key
}

// SetQuote mirrors the latest price one source holds for a market.
func (qc *QuoteCache) SetQuote(ctx context.Context, key string, source domain.Source, price float64, ts time.Time) error {
	k := quoteKey(key)
	fields := map[string]interface{}{
		string(source):         strconv.FormatFloat(price, 'f', -1, 64),
		string(source) + "_ts": strconv.FormatInt(ts.UnixNano(), 10),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, k, fields)
	pipe.Expire(ctx, k, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuotes returns the mirrored per-source prices for a market. It returns
// domain.ErrNotFound when the market is not mirrored.
func (qc *QuoteCache) GetQuotes(ctx context.Context, key string) (map[domain.Source]float64, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quotes %s: %w", key, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	out := make(map[domain.Source]float64, 2)
	for _, src := range []domain.Source{domain.SourceSharp, domain.SourceSoft} {
		s, ok := vals[string(src)]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse quote %s/%s: %w", key, src, err)
		}
		out[src] = price
	}
	return out, nil
}
