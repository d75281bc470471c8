package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	libtesting "github.com/pbis/authclient/lib/testing"
)

// StoreSuite runs the same contract checks against every backend.
type StoreSuite struct {
	libtesting.Suite
	newStore func(t *testing.T) Store
	store    Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
}

func (s *StoreSuite) TestAbsentIsEmpty() {
	value, err := s.store.Get(s.Ctx(), AccessTokenKey)
	s.Require().NoError(err)
	s.Require().Empty(value)
}

func (s *StoreSuite) TestSetGetRemove() {
	ctx := s.Ctx()
	s.Require().NoError(s.store.Set(ctx, AccessTokenKey, "tok1"))

	value, err := s.store.Get(ctx, AccessTokenKey)
	s.Require().NoError(err)
	s.Require().Equal("tok1", value)

	s.Require().NoError(s.store.Set(ctx, AccessTokenKey, "tok2"))
	value, err = s.store.Get(ctx, AccessTokenKey)
	s.Require().NoError(err)
	s.Require().Equal("tok2", value)

	s.Require().NoError(s.store.Remove(ctx, AccessTokenKey))
	value, err = s.store.Get(ctx, AccessTokenKey)
	s.Require().NoError(err)
	s.Require().Empty(value)
}

func (s *StoreSuite) TestRemoveAbsent() {
	s.Require().NoError(s.store.Remove(s.Ctx(), RefreshTokenKey))
}

func (s *StoreSuite) TestCredentialHelpers() {
	ctx := s.Ctx()
	s.Require().NoError(PutCredentials(ctx, s.store, Credentials{AccessToken: "a1", RefreshToken: "r1"}))

	// An empty refresh token in the pair keeps the stored one.
	s.Require().NoError(PutCredentials(ctx, s.store, Credentials{AccessToken: "a2"}))
	creds, err := GetCredentials(ctx, s.store)
	s.Require().NoError(err)
	s.Require().Equal(Credentials{AccessToken: "a2", RefreshToken: "r1"}, creds)

	s.Require().NoError(ClearCredentials(ctx, s.store))
	creds, err = GetCredentials(ctx, s.store)
	s.Require().NoError(err)
	s.Require().Equal(Credentials{}, creds)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) Store { return NewMemoryStore() }})
}

func TestDiskStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		store, err := NewDiskStore(t.TempDir())
		require.NoError(t, err)
		return store
	}})
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		store, err := NewRedisStore(rdb, "test")
		require.NoError(t, err)
		return store
	}})
}

func TestDiskStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, RefreshTokenKey, "refresh-1"))

	reopened, err := NewDiskStore(dir)
	require.NoError(t, err)
	value, err := reopened.Get(ctx, RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", value)

	info, err := os.Stat(filepath.Join(dir, RefreshTokenKey))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store, err := NewRedisStore(rdb, "pbis")
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), AccessTokenKey, "tok"))

	value, err := mr.Get("pbis:access_token")
	require.NoError(t, err)
	require.Equal(t, "tok", value)
}

func TestConstructorsRejectMissingDeps(t *testing.T) {
	_, err := NewDiskStore("")
	require.Error(t, err)
	_, err = NewRedisStore(nil, "x")
	require.Error(t, err)
}
