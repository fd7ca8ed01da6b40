package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) GetCost(ctx context.Context, serviceName string) (int, error) {
	args := m.Called(ctx, serviceName)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) UpsertCost(ctx context.Context, serviceName string, cost int) error {
	return m.Called(ctx, serviceName, cost).Error(0)
}

func (m *MockRepository) ListPlans(ctx context.Context) ([]Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Plan), args.Error(1)
}

func (m *MockRepository) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Plan), args.Error(1)
}

func TestGetCost_CachesWithinTTL(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetCost", mock.Anything, "text_interview").Return(5, nil).Once()

	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cost, err := svc.GetCost(ctx, "text_interview")
		require.NoError(t, err)
		assert.Equal(t, 5, cost)
	}
	repo.AssertExpectations(t)
}

func TestGetCost_ExpiresAfterTTL(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetCost", mock.Anything, "ai_chat").Return(1, nil).Twice()

	s := NewService(repo, time.Minute).(*service)
	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.GetCost(context.Background(), "ai_chat")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.GetCost(context.Background(), "ai_chat")
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestGetCost_MissesAreNotCached(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetCost", mock.Anything, "new_service").Return(0, ErrServiceNotConfigured).Once()
	repo.On("GetCost", mock.Anything, "new_service").Return(7, nil).Once()

	svc := NewService(repo, time.Minute)

	_, err := svc.GetCost(context.Background(), "new_service")
	assert.ErrorIs(t, err, ErrServiceNotConfigured)

	cost, err := svc.GetCost(context.Background(), "new_service")
	require.NoError(t, err)
	assert.Equal(t, 7, cost)
}

func TestGetCost_ConcurrentCallersShareLookup(t *testing.T) {
	repo := new(MockRepository)
	release := make(chan struct{})
	repo.On("GetCost", mock.Anything, "voice_interview").
		Run(func(mock.Arguments) { <-release }).
		Return(10, nil)

	svc := NewService(repo, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cost, err := svc.GetCost(context.Background(), "voice_interview")
			assert.NoError(t, err)
			assert.Equal(t, 10, cost)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, len(repo.Calls), 8)
}

func TestSeedDefaults(t *testing.T) {
	repo := new(MockRepository)
	for _, c := range DefaultCosts {
		repo.On("UpsertCost", mock.Anything, c.ServiceName, c.Cost).Return(nil).Once()
	}

	svc := NewService(repo, time.Minute)
	require.NoError(t, svc.SeedDefaults(context.Background()))
	repo.AssertExpectations(t)
}

func TestSeedDefaults_StopsOnError(t *testing.T) {
	repo := new(MockRepository)
	boom := errors.New("db down")
	repo.On("UpsertCost", mock.Anything, DefaultCosts[0].ServiceName, DefaultCosts[0].Cost).Return(boom).Once()

	svc := NewService(repo, time.Minute)
	assert.ErrorIs(t, svc.SeedDefaults(context.Background()), boom)
	repo.AssertNumberOfCalls(t, "UpsertCost", 1)
}
