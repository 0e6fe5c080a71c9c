package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"whaleflow/internal/aggregate"
	"whaleflow/internal/cache"
	"whaleflow/internal/metrics"
	"whaleflow/internal/models"
	"whaleflow/logger"
)

// MarketSource is one exchange feed contributing tickers to the aggregate.
type MarketSource interface {
	Name() string
	Fetch(ctx context.Context) ([]models.SymbolTicker, error)
}

// MarketService fans out to every configured exchange, folds the results by
// symbol and serves them through the two-tier cache.
type MarketService struct {
	sources []MarketSource
	cache   *cache.Tiered[[]models.AggregatedSymbol]
	log     *logger.Log
}

func NewMarketService(sources []MarketSource, store *cache.RedisStore) *MarketService {
	return &MarketService{
		sources: sources,
		cache:   cache.NewTiered[[]models.AggregatedSymbol]("markets", marketMemTTL, marketStoreTTL, store),
		log:     logger.GetLogger(),
	}
}

// Cache exposes the tiered cache for tests.
func (s *MarketService) Cache() *cache.Tiered[[]models.AggregatedSymbol] {
	return s.cache
}

// List returns the aggregated symbol table plus its snapshot timestamp.
// Individual source failures are tolerated; the snapshot fails only when
// every source does, and even then a stale snapshot is preferred.
func (s *MarketService) List(ctx context.Context) ([]models.AggregatedSymbol, time.Time, error) {
	if entry, ok := s.cache.Lookup(ctx); ok {
		metrics.IncCache("markets", metrics.CacheHit)
		return entry.Data, entry.Time, nil
	}
	metrics.IncCache("markets", metrics.CacheMiss)

	symbols, err := s.refresh(ctx)
	if err != nil {
		if entry, ok := s.cache.Stale(); ok {
			metrics.IncCache("markets", metrics.CacheStaleServe)
			s.log.WithComponent("market_service").WithError(err).Warn("refresh failed, serving stale snapshot")
			return entry.Data, entry.Time, nil
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrNoData, err)
	}

	s.cache.Store(symbols)
	entry, _ := s.cache.Stale()
	return entry.Data, entry.Time, nil
}

func (s *MarketService) refresh(ctx context.Context) ([]models.AggregatedSymbol, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("no market sources configured")
	}

	log := s.log.WithComponent("market_service")

	var mu sync.Mutex
	var wg sync.WaitGroup
	var tickers []models.SymbolTicker
	for _, source := range s.sources {
		wg.Add(1)
		go func(source MarketSource) {
			defer wg.Done()
			fetched, err := source.Fetch(ctx)
			if err != nil {
				metrics.IncUpstream(source.Name(), metrics.OutcomeError)
				log.WithFields(logger.Fields{
					"source": source.Name(),
				}).WithError(err).Warn("market source failed")
				return
			}
			metrics.IncUpstream(source.Name(), metrics.OutcomeSuccess)
			mu.Lock()
			tickers = append(tickers, fetched...)
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	if len(tickers) == 0 {
		return nil, fmt.Errorf("all %d market sources failed", len(s.sources))
	}
	return aggregate.Symbols(tickers), nil
}
