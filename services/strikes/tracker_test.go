package strikes

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/jsonfile"
	"github.com/upb/llm-router/repositories/sqlite"
	"go.uber.org/zap"
)

// fakeClock is a settable clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// MockStrikeRepository is a mock implementation of repositories.StrikeRepository
type MockStrikeRepository struct {
	mock.Mock
}

func (m *MockStrikeRepository) Load(ctx context.Context) (map[string]models.StrikeRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.StrikeRecord), args.Error(1)
}

func (m *MockStrikeRepository) Upsert(ctx context.Context, rec models.StrikeRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockStrikeRepository) Delete(ctx context.Context, providerIDs ...string) error {
	return m.Called(ctx, providerIDs).Error(0)
}

func (m *MockStrikeRepository) Close() error {
	return m.Called().Error(0)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)}
}

func TestTracker_IsAvailable(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider is available", func(t *testing.T) {
		tracker := NewTracker(ctx, nil, zap.NewNop())
		assert.True(t, tracker.IsAvailable(ctx, "gemini-free"))
	})

	t.Run("strike with retry after expires exactly at the boundary", func(t *testing.T) {
		clock := newClock()
		tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

		tracker.Strike(ctx, "groq-free", "429", models.RenewalRolling, intPtr(30))
		assert.False(t, tracker.IsAvailable(ctx, "groq-free"))

		clock.Advance(29 * time.Second)
		assert.False(t, tracker.IsAvailable(ctx, "groq-free"))

		clock.Advance(time.Second)
		assert.True(t, tracker.IsAvailable(ctx, "groq-free"))

		_, ok := tracker.Lookup("groq-free")
		assert.False(t, ok, "expired strike must be removed lazily")
	})

	t.Run("daily strike holds until midnight", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 1, 15, 23, 0, 0, 0, time.UTC)}
		tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

		rec := tracker.Strike(ctx, "gemini-free", "quota", models.RenewalDaily, nil)
		assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), rec.RenewsAt)

		clock.Advance(59*time.Minute + 59*time.Second)
		assert.False(t, tracker.IsAvailable(ctx, "gemini-free"))

		clock.Advance(time.Second)
		assert.True(t, tracker.IsAvailable(ctx, "gemini-free"))
	})

	t.Run("huge retry after keeps the provider struck", func(t *testing.T) {
		clock := newClock()
		tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

		rec := tracker.Strike(ctx, "groq-free", "429", models.RenewalDaily, intPtr(10_000_000_000))
		assert.True(t, rec.RenewsAt.After(clock.now))
		assert.False(t, tracker.IsAvailable(ctx, "groq-free"))
	})
}

func TestTracker_StrikeOverwrites(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

	tracker.Strike(ctx, "openai", "first", models.RenewalMonthly, nil)
	tracker.Strike(ctx, "openai", "second", models.RenewalRolling, nil)

	rec, ok := tracker.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "second", rec.Reason)
	assert.Equal(t, clock.now.Add(RollingWindow), rec.RenewsAt)
	assert.Equal(t, 1, tracker.Status(ctx).ActiveCount)
}

func TestTracker_ClearExpired(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

	tracker.Strike(ctx, "c", "r", models.RenewalRolling, intPtr(10))
	tracker.Strike(ctx, "a", "r", models.RenewalRolling, intPtr(10))
	tracker.Strike(ctx, "b", "r", models.RenewalDaily, nil)

	assert.Empty(t, tracker.ClearExpired(ctx))

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"a", "c"}, tracker.ClearExpired(ctx))
	assert.Empty(t, tracker.ClearExpired(ctx), "second sweep must be a no-op")

	status := tracker.Status(ctx)
	assert.Equal(t, 1, status.ActiveCount)
	assert.Contains(t, status.Records, "b")
}

func TestTracker_Status(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	tracker := NewTracker(ctx, nil, zap.NewNop(), WithClock(clock.Now))

	tracker.Strike(ctx, "openai", "429", models.RenewalRolling, nil)
	tracker.Strike(ctx, "anthropic", "quota", models.RenewalDaily, nil)

	status := tracker.Status(ctx)
	assert.Equal(t, 2, status.ActiveCount)

	// snapshot must not alias internal state
	delete(status.Records, "openai")
	_, ok := tracker.Lookup("openai")
	assert.True(t, ok)

	clock.Advance(RollingWindow)
	status = tracker.Status(ctx)
	assert.Equal(t, 1, status.ActiveCount)
	assert.NotContains(t, status.Records, "openai")
}

func TestTracker_Reset(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(ctx, nil, zap.NewNop())

	assert.False(t, tracker.Reset(ctx, "openai"))

	tracker.Strike(ctx, "openai", "429", models.RenewalMonthly, nil)
	assert.False(t, tracker.IsAvailable(ctx, "openai"))

	assert.True(t, tracker.Reset(ctx, "openai"))
	assert.True(t, tracker.IsAvailable(ctx, "openai"))
}

func TestTracker_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	backends := map[string]func(t *testing.T) func() (repositories.StrikeRepository, error){
		"json file": func(t *testing.T) func() (repositories.StrikeRepository, error) {
			path := filepath.Join(t.TempDir(), "tracker-state.json")
			return func() (repositories.StrikeRepository, error) {
				return jsonfile.NewStrikeRepository(path, logger), nil
			}
		},
		"sqlite": func(t *testing.T) func() (repositories.StrikeRepository, error) {
			path := filepath.Join(t.TempDir(), "strikes.db")
			return func() (repositories.StrikeRepository, error) {
				return sqlite.NewStrikeRepository(path, logger)
			}
		},
	}

	for name, setup := range backends {
		t.Run(name, func(t *testing.T) {
			open := setup(t)
			clock := newClock()

			repo, err := open()
			require.NoError(t, err)

			first := NewTracker(ctx, repo, logger, WithClock(clock.Now))
			want := first.Strike(ctx, "gemini-free", "429 quota exceeded", models.RenewalDaily, nil)
			first.Strike(ctx, "groq-free", "rate limit", models.RenewalRolling, nil)
			first.Reset(ctx, "groq-free")
			require.NoError(t, repo.Close())

			repo, err = open()
			require.NoError(t, err)
			defer repo.Close()

			second := NewTracker(ctx, repo, logger, WithClock(clock.Now))
			got, ok := second.Lookup("gemini-free")
			require.True(t, ok)
			assert.Equal(t, want.Reason, got.Reason)
			assert.True(t, want.RenewsAt.Equal(got.RenewsAt))
			assert.True(t, want.StruckAt.Equal(got.StruckAt))
			assert.False(t, second.IsAvailable(ctx, "gemini-free"))
			assert.True(t, second.IsAvailable(ctx, "groq-free"))
		})
	}
}

func TestTracker_MalformedTimestampFailsOpen(t *testing.T) {
	ctx := context.Background()
	repo := new(MockStrikeRepository)
	repo.On("Load", ctx).Return(map[string]models.StrikeRecord{
		"openai": {ProviderID: "openai", Reason: "garbled"},
	}, nil)
	repo.On("Delete", ctx, []string{"openai"}).Return(nil)

	tracker := NewTracker(ctx, repo, zap.NewNop(), WithClock(newClock().Now))

	assert.True(t, tracker.IsAvailable(ctx, "openai"))
	repo.AssertExpectations(t)
}

func TestTracker_LoadErrorStartsEmpty(t *testing.T) {
	ctx := context.Background()
	repo := new(MockStrikeRepository)
	repo.On("Load", ctx).Return(nil, errors.New("corrupt"))

	tracker := NewTracker(ctx, repo, zap.NewNop())

	assert.Equal(t, 0, tracker.Status(ctx).ActiveCount)
	repo.AssertExpectations(t)
}

func TestTracker_PersistenceErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	repo := new(MockStrikeRepository)
	repo.On("Load", ctx).Return(map[string]models.StrikeRecord{}, nil)
	repo.On("Upsert", ctx, mock.AnythingOfType("models.StrikeRecord")).Return(errors.New("disk full"))
	repo.On("Delete", ctx, []string{"openai"}).Return(errors.New("disk full"))

	tracker := NewTracker(ctx, repo, zap.NewNop())

	rec := tracker.Strike(ctx, "openai", "429", models.RenewalRolling, nil)
	assert.Equal(t, "openai", rec.ProviderID)
	assert.False(t, tracker.IsAvailable(ctx, "openai"))

	assert.True(t, tracker.Reset(ctx, "openai"))
	assert.True(t, tracker.IsAvailable(ctx, "openai"))
	repo.AssertExpectations(t)
}
