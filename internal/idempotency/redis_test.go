package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func storedRecord(t *testing.T, record Record) *redis.StringCmd {
	t.Helper()
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	return redis.NewStringResult(string(raw), nil)
}

func decodePayload(t *testing.T, value interface{}) Record {
	t.Helper()
	raw, ok := value.([]byte)
	require.True(t, ok, "payload is %T", value)
	var record Record
	require.NoError(t, json.Unmarshal(raw, &record))
	return record
}

func TestRedisStore_Reserve(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	fp := Fingerprint([]byte("user-1"), []byte("body"))
	rkey := redisKeyPrefix + storageKey("key-1")

	tests := []struct {
		name      string
		setup     func(m *mockRedis)
		wantState ReservationState
		wantErr   error
	}{
		{
			name: "fresh key is owned by the caller",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(true, nil)).Once()
			},
			wantState: ReservationStateNew,
		},
		{
			name: "same request in flight",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil)).Once()
				m.On("Get", ctx, rkey).Return(storedRecord(t, Record{Key: "key-1", Fingerprint: fp, Status: StatusPending})).Once()
			},
			wantState: ReservationStatePending,
		},
		{
			name: "completed request is replayed",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil)).Once()
				m.On("Get", ctx, rkey).Return(storedRecord(t, Record{
					Key: "key-1", Fingerprint: fp, Status: StatusCompleted,
					ResponseStatus: 201, ResponseBody: []byte(`{"id":"order-1"}`),
				})).Once()
			},
			wantState: ReservationStateCompleted,
		},
		{
			name: "different request with the same key",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil)).Once()
				m.On("Get", ctx, rkey).Return(storedRecord(t, Record{Key: "key-1", Fingerprint: "other", Status: StatusPending})).Once()
			},
			wantErr: ErrFingerprintMismatch,
		},
		{
			name: "key expired between SETNX and GET",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil)).Once()
				m.On("Get", ctx, rkey).Return(redis.NewStringResult("", redis.Nil)).Once()
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(true, nil)).Once()
			},
			wantState: ReservationStateNew,
		},
		{
			name: "expiry race is retried only once",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil)).Twice()
				m.On("Get", ctx, rkey).Return(redis.NewStringResult("", redis.Nil)).Twice()
			},
			wantErr: redis.Nil,
		},
		{
			name: "redis failure",
			setup: func(m *mockRedis) {
				m.On("SetNX", ctx, rkey, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, errors.New("connection refused"))).Once()
			},
			wantErr: errors.New("idempotency: reserve key: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockRedis)
			tt.setup(m)
			store := NewRedisStore(m)

			res, err := store.Reserve(ctx, "key-1", fp, now, time.Hour)
			switch {
			case tt.wantErr == nil:
				require.NoError(t, err)
				assert.Equal(t, tt.wantState, res.State)
			case errors.Is(tt.wantErr, ErrFingerprintMismatch) || errors.Is(tt.wantErr, redis.Nil):
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.EqualError(t, err, tt.wantErr.Error())
			}
			m.AssertExpectations(t)
		})
	}
}

func TestRedisStore_ReserveWritesPendingRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("UTC+7", 7*3600))
	m := new(mockRedis)
	m.On("SetNX", ctx, redisKeyPrefix+storageKey("key-1"), mock.Anything, DefaultTTL).
		Return(redis.NewBoolResult(true, nil)).Once()

	res, err := NewRedisStore(m).Reserve(ctx, "key-1", "fp", now, 0)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	record := decodePayload(t, m.Calls[0].Arguments.Get(2))
	assert.Equal(t, StatusPending, record.Status)
	assert.Equal(t, "fp", record.Fingerprint)
	assert.True(t, now.UTC().Equal(record.CreatedAt))
	assert.True(t, now.Add(DefaultTTL).Equal(record.ExpiresAt))
	m.AssertExpectations(t)
}

func TestRedisStore_SaveResponse(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rkey := redisKeyPrefix + storageKey("key-1")
	m := new(mockRedis)
	m.On("Set", ctx, rkey, mock.Anything, 30*time.Minute).Return(redis.NewStatusResult("OK", nil)).Once()

	err := NewRedisStore(m).SaveResponse(ctx, "key-1", "fp", Response{
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"order-1"}`),
	}, now, 30*time.Minute)
	require.NoError(t, err)

	record := decodePayload(t, m.Calls[0].Arguments.Get(2))
	assert.Equal(t, StatusCompleted, record.Status)
	assert.Equal(t, 201, record.ResponseStatus)
	assert.Equal(t, "application/json", record.ContentType)
	assert.JSONEq(t, `{"id":"order-1"}`, string(record.ResponseBody))
	assert.True(t, now.Add(30*time.Minute).Equal(record.ExpiresAt))
	m.AssertExpectations(t)
}

func TestRedisStore_SaveResponseFailure(t *testing.T) {
	ctx := context.Background()
	m := new(mockRedis)
	m.On("Set", ctx, mock.Anything, mock.Anything, DefaultTTL).Return(redis.NewStatusResult("", errors.New("READONLY"))).Once()

	err := NewRedisStore(m).SaveResponse(ctx, "key-1", "fp", Response{Status: 200}, time.Now(), 0)
	assert.EqualError(t, err, "idempotency: save response: READONLY")
}

func TestRedisStore_Release(t *testing.T) {
	ctx := context.Background()
	m := new(mockRedis)
	m.On("Del", ctx, []string{redisKeyPrefix + storageKey(" key-1 ")}).Return(redis.NewIntResult(1, nil)).Once()

	require.NoError(t, NewRedisStore(m).Release(ctx, " key-1 "))
	m.AssertExpectations(t)
}
