package suggestionexpiry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockExpirer struct {
	mock.Mock
}

func (m *MockExpirer) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func TestScheduler_RunOnceUsesClock(t *testing.T) {
	now := time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)
	expirer := new(MockExpirer)
	expirer.On("ExpireStale", mock.Anything, now).Return(3, nil)

	s := NewScheduler(expirer, DefaultConfig(), zap.NewNop())
	s.clock = func() time.Time { return now }

	count, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	expirer.AssertExpectations(t)
}

func TestScheduler_RunOncePropagatesError(t *testing.T) {
	expirer := new(MockExpirer)
	expirer.On("ExpireStale", mock.Anything, mock.Anything).Return(0, stderrors.New("store down"))

	s := NewScheduler(expirer, DefaultConfig(), zap.NewNop())

	_, err := s.RunOnce(context.Background())
	assert.EqualError(t, err, "store down")
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(new(MockExpirer), DefaultConfig(), zap.NewNop())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Error(t, s.Stop())
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(new(MockExpirer), Config{Schedule: "every now and then"}, zap.NewNop())

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expiry schedule")
	assert.False(t, s.IsRunning())
}
