package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL applies when the configured TTL is not positive.
const DefaultTTL = 5 * time.Minute

// Stats counts lookups since construction.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// Profiles is a cache-aside reader for user and product summaries.
//
// Concurrent misses on the same key share one repository query. A Redis
// failure is logged and falls through to the repository; it never fails
// the lookup. A nil backend disables caching.
type Profiles struct {
	users    repository.UserRepository
	products repository.ProductRepository
	backend  Backend
	ttl      time.Duration
	logger   *zap.Logger

	group singleflight.Group

	hits, misses, errs atomic.Int64
}

func NewProfiles(users repository.UserRepository, products repository.ProductRepository, backend Backend, ttl time.Duration, logger *zap.Logger) *Profiles {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Profiles{
		users:    users,
		products: products,
		backend:  backend,
		ttl:      ttl,
		logger:   logger,
	}
}

func userKey(id uuid.UUID) string    { return "user:" + id.String() }
func productKey(id uuid.UUID) string { return "product:" + id.String() }

// User returns the summary of userID, or nil, nil if the user does not exist.
func (p *Profiles) User(ctx context.Context, userID uuid.UUID) (*models.UserSummary, error) {
	key := userKey(userID)

	var cached models.UserSummary
	if p.get(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		u, err := p.users.GetByID(ctx, userID)
		if err != nil || u == nil {
			return (*models.UserSummary)(nil), err
		}
		s := &models.UserSummary{ID: u.ID, FullName: u.FullName, ProfileImage: u.ProfileImage}
		p.set(ctx, key, s)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	return v.(*models.UserSummary), nil
}

// Product returns the summary of productID, or nil, nil if it does not exist.
func (p *Profiles) Product(ctx context.Context, productID uuid.UUID) (*models.ProductSummary, error) {
	key := productKey(productID)

	var cached models.ProductSummary
	if p.get(ctx, key, &cached) {
		return &cached, nil
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		pr, err := p.products.GetByID(ctx, productID)
		if err != nil || pr == nil {
			return (*models.ProductSummary)(nil), err
		}
		s := &models.ProductSummary{ID: pr.ID, Title: pr.Title}
		p.set(ctx, key, s)
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}
	return v.(*models.ProductSummary), nil
}

// Stats is read by the metrics endpoint on every scrape.
func (p *Profiles) Stats() Stats {
	return Stats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Errors: p.errs.Load(),
	}
}

func (p *Profiles) get(ctx context.Context, key string, dest any) bool {
	if p.backend == nil {
		return false
	}
	data, err := p.backend.Get(ctx, key)
	if err != nil {
		p.errs.Add(1)
		p.logger.Warn("profile cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if data == nil {
		p.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		p.errs.Add(1)
		p.logger.Warn("profile cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	p.hits.Add(1)
	return true
}

func (p *Profiles) set(ctx context.Context, key string, value any) {
	if p.backend == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		p.errs.Add(1)
		return
	}
	if err := p.backend.Set(ctx, key, data, p.ttl); err != nil {
		p.errs.Add(1)
		p.logger.Warn("profile cache write failed", zap.String("key", key), zap.Error(err))
	}
}
