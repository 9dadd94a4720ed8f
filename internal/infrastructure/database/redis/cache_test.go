package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/SpeciesConservationLandscapes/task-scl-stats/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := NewClientWithUniversal(db, "test:", logging.NewNopLogger())
	s.cache = NewRedisCache(client, logging.NewNopLogger())
}

func (s *CacheTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

type testStruct struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := testStruct{Name: "tiger", Age: 3}
	data, _ := json.Marshal(val)
	s.mock.ExpectGet("test:cache:key1").SetVal(string(data))

	var dest testStruct
	s.Require().NoError(s.cache.Get(context.Background(), "key1", &dest))
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:cache:key1").RedisNil()

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.Equal(ErrCacheMiss, err)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_NullMarker() {
	s.mock.ExpectGet("test:cache:key1").SetVal(nullMarker)

	var dest testStruct
	s.Equal(ErrCacheMiss, s.cache.Get(context.Background(), "key1", &dest))
}

func (s *CacheTestSuite) TestGet_RedisError() {
	s.mock.ExpectGet("test:cache:key1").SetErr(errors.New("connection refused"))

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:cache:key1").SetVal("{")

	var dest testStruct
	err := s.cache.Get(context.Background(), "key1", &dest)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:cache:k1", "test:cache:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
	s.NoError(s.cache.Delete(context.Background()))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestCache_SetAppliesJitteredTTL(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewRedisCache(client, nil, WithDefaultTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", testStruct{Name: "a"}, 0))
	ttl := mr.TTL("test:cache:k")
	assert.GreaterOrEqual(t, ttl, 54*time.Second)
	assert.LessOrEqual(t, ttl, 66*time.Second)

	var got testStruct
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, "a", got.Name)
}

func TestCache_GetOrSet(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewRedisCache(client, nil)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return testStruct{Name: "loaded", Age: 1}, nil
	}

	var first, second testStruct
	require.NoError(t, cache.GetOrSet(ctx, "k", &first, time.Minute, loader))
	require.NoError(t, cache.GetOrSet(ctx, "k", &second, time.Minute, loader))
	assert.Equal(t, "loaded", first.Name)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCache_GetOrSet_Concurrent(t *testing.T) {
	client, _ := newTestClient(t)
	cache := NewRedisCache(client, nil)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	loader := func(context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return testStruct{Name: "x"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest testStruct
			assert.NoError(t, cache.GetOrSet(ctx, "shared", &dest, time.Minute, loader))
			assert.Equal(t, "x", dest.Name)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestCache_GetOrSet_NilIsCachedAsMiss(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewRedisCache(client, nil, WithNullCacheTTL(time.Second))
	ctx := context.Background()

	var dest testStruct
	err := cache.GetOrSet(ctx, "none", &dest, time.Minute, func(context.Context) (interface{}, error) { return nil, nil })
	assert.Equal(t, ErrCacheMiss, err)
	v, _ := mr.Get("test:cache:none")
	assert.Equal(t, nullMarker, v)
}

func TestCache_GetOrSet_LoaderError(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewRedisCache(client, nil)
	boom := errors.New("boom")

	var dest testStruct
	err := cache.GetOrSet(context.Background(), "k", &dest, time.Minute, func(context.Context) (interface{}, error) { return nil, boom })
	assert.Equal(t, boom, err)
	assert.False(t, mr.Exists("test:cache:k"))
}

func TestCache_DeleteByPrefix(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewRedisCache(client, nil)
	ctx := context.Background()

	for _, k := range []string{"catalog:a:1", "catalog:a:2", "catalog:b:1"} {
		require.NoError(t, cache.Set(ctx, k, 1, time.Minute))
	}
	n, err := cache.DeleteByPrefix(ctx, "catalog:a:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, mr.Exists("test:cache:catalog:a:1"))
	assert.True(t, mr.Exists("test:cache:catalog:b:1"))
}

//Personal.AI order the ending
