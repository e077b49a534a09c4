package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedQuoteFetcher is a short-TTL Redis cache in front of a QuoteFetcher.
// Cache problems never fail a fetch, they fall through to the upstream.
type CachedQuoteFetcher struct {
	next QuoteFetcher
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedQuoteFetcher(next QuoteFetcher, rdb *redis.Client, ttl time.Duration) *CachedQuoteFetcher {
	return &CachedQuoteFetcher{next: next, rdb: rdb, ttl: ttl}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func (c *CachedQuoteFetcher) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	cached, err := c.rdb.Get(ctx, quoteKey(symbol)).Bytes()
	if err == nil {
		var quote Quote
		if err := json.Unmarshal(cached, &quote); err == nil {
			return quote, nil
		}
	} else if err != redis.Nil {
		log.Printf("Quote cache read failed for %s: %v", symbol, err)
	}

	quote, err := c.next.FetchQuote(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}

	if data, err := json.Marshal(quote); err == nil {
		if err := c.rdb.Set(ctx, quoteKey(symbol), data, c.ttl).Err(); err != nil {
			log.Printf("Quote cache write failed for %s: %v", symbol, err)
		}
	}
	return quote, nil
}
