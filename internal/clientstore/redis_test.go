package clientstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrefix  = "hostpanel:client:"
	testChannel = "hostpanel:client:changes"
)

func TestRedisStore_Get(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	store := newRedisStore(rdb, testPrefix, testChannel, "origin-a", zerolog.Nop())
	ctx := context.Background()

	mock.ExpectGet(testPrefix + "hostpanel.token").SetVal("jwt")
	mock.ExpectGet(testPrefix + "hostpanel.profile").RedisNil()
	mock.ExpectGet(testPrefix + "broken").SetErr(errors.New("conn reset"))

	value, ok, err := store.Get(ctx, "hostpanel.token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "jwt", value)

	_, ok, err = store.Get(ctx, "hostpanel.profile")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.Get(ctx, "broken")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_UpdateIsTransactionalAndAnnounced(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	store := newRedisStore(rdb, testPrefix, testChannel, "origin-a", zerolog.Nop())

	mock.ExpectTxPipeline()
	mock.ExpectSet(testPrefix+"hostpanel.profile", `{"id":"1"}`, 0).SetVal("OK")
	mock.ExpectDel(testPrefix + "hostpanel.token").SetVal(1)
	mock.ExpectTxPipelineExec()
	mock.ExpectPublish(testChannel, `{"key":"hostpanel.profile","origin":"origin-a","deleted":false}`).SetVal(1)
	mock.ExpectPublish(testChannel, `{"key":"hostpanel.token","origin":"origin-a","deleted":true}`).SetVal(1)

	err := store.Update(context.Background(), map[string]*string{
		"hostpanel.token":   nil,
		"hostpanel.profile": Value(`{"id":"1"}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DecodeFiltersEvents(t *testing.T) {
	store := newRedisStore(nil, testPrefix, testChannel, "origin-a", zerolog.Nop())

	testCases := []struct {
		name     string
		payload  string
		expect   Change
		relevant bool
	}{
		{
			name:     "other origin",
			payload:  `{"key":"hostpanel.token","origin":"origin-b","deleted":true}`,
			expect:   Change{Key: "hostpanel.token", Deleted: true},
			relevant: true,
		},
		{
			name:    "own origin",
			payload: `{"key":"hostpanel.token","origin":"origin-a","deleted":true}`,
		},
		{
			name:    "other key",
			payload: `{"key":"hostpanel.profile","origin":"origin-b"}`,
		},
		{
			name:    "malformed",
			payload: `not json`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			change, relevant := store.decode(tc.payload, "hostpanel.token")
			assert.Equal(t, tc.relevant, relevant)
			assert.Equal(t, tc.expect, change)
		})
	}
}

func newServerStores(t *testing.T) (*miniredis.Miniredis, *RedisStore, *RedisStore) {
	t.Helper()
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tabA := newRedisStore(rdb, testPrefix, testChannel, "origin-a", zerolog.Nop())
	tabB := newRedisStore(rdb, testPrefix, testChannel, "origin-b", zerolog.Nop())
	return server, tabA, tabB
}

func TestRedisStore_SubscribeDeliversOtherOriginsOnly(t *testing.T) {
	_, tabA, tabB := newServerStores(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := tabB.Subscribe(ctx, "hostpanel.token")
	require.NoError(t, err)

	require.NoError(t, tabB.Update(ctx, map[string]*string{"hostpanel.token": Value("own-write")}))
	require.NoError(t, tabA.Update(ctx, map[string]*string{"hostpanel.profile": Value(`{"id":"1"}`)}))
	require.NoError(t, tabA.Update(ctx, map[string]*string{"hostpanel.token": nil}))

	select {
	case change := <-changes:
		assert.Equal(t, Change{Key: "hostpanel.token", Deleted: true}, change)
	case <-time.After(2 * time.Second):
		t.Fatal("change from another origin was not delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisStore_UpdateIf(t *testing.T) {
	server, tabA, _ := newServerStores(t)
	ctx := context.Background()
	profile := map[string]*string{"hostpanel.profile": Value(`{"id":"1"}`)}

	applied, err := tabA.UpdateIf(ctx, "hostpanel.token", "jwt-1", profile)
	require.NoError(t, err)
	assert.False(t, applied)

	require.NoError(t, tabA.Update(ctx, map[string]*string{"hostpanel.token": Value("jwt-2")}))

	applied, err = tabA.UpdateIf(ctx, "hostpanel.token", "jwt-1", profile)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, server.Exists(testPrefix+"hostpanel.profile"))

	applied, err = tabA.UpdateIf(ctx, "hostpanel.token", "jwt-2", profile)
	require.NoError(t, err)
	assert.True(t, applied)

	stored, err := server.Get(testPrefix + "hostpanel.profile")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`, stored)
}
