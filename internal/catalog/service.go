package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/logger"
)

// Service is the read side of the cost and plan catalog. Costs are cached
// in-process for a short TTL; misses are not cached so a newly configured
// service becomes chargeable without a restart.
type Service interface {
	GetCost(ctx context.Context, serviceName string) (int, error)
	GetAllPlans(ctx context.Context) ([]Plan, error)
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	SeedDefaults(ctx context.Context) error
}

type cachedCost struct {
	cost      int
	expiresAt time.Time
}

type service struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	costs map[string]cachedCost
	sf    singleflight.Group
}

func NewService(repo Repository, ttl time.Duration) Service {
	return &service{
		repo:  repo,
		ttl:   ttl,
		now:   time.Now,
		costs: make(map[string]cachedCost),
	}
}

func (s *service) GetCost(ctx context.Context, serviceName string) (int, error) {
	if s.ttl > 0 {
		s.mu.RLock()
		c, ok := s.costs[serviceName]
		s.mu.RUnlock()
		if ok && s.now().Before(c.expiresAt) {
			return c.cost, nil
		}
	}

	v, err, _ := s.sf.Do("cost:"+serviceName, func() (interface{}, error) {
		cost, err := s.repo.GetCost(ctx, serviceName)
		if err != nil {
			return 0, err
		}
		if s.ttl > 0 {
			s.mu.Lock()
			s.costs[serviceName] = cachedCost{cost: cost, expiresAt: s.now().Add(s.ttl)}
			s.mu.Unlock()
		}
		return cost, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *service) GetAllPlans(ctx context.Context) ([]Plan, error) {
	return s.repo.ListPlans(ctx)
}

func (s *service) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	return s.repo.GetPlan(ctx, planID)
}

func (s *service) SeedDefaults(ctx context.Context) error {
	for _, c := range DefaultCosts {
		if err := s.repo.UpsertCost(ctx, c.ServiceName, c.Cost); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.costs = make(map[string]cachedCost)
	s.mu.Unlock()

	logger.Info("Service costs seeded", "count", len(DefaultCosts))
	return nil
}
