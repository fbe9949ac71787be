package bootstrap

import (
	"context"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/sessions"
)

func TestOpenStores_MemoryWithoutMongo(t *testing.T) {
	s, err := OpenStores(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	defer s.Close(context.Background())

	require.Nil(t, s.Mongo)
	require.IsType(t, &repository.MemoryRepo{}, s.Catalog)
	require.IsType(t, &sessions.MemoryRepository{}, s.Sessions)
}

func TestOpenStores_RedisSessions(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	rdb := ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()})
	require.NotNil(t, rdb)
	defer rdb.Close()

	s, err := OpenStores(context.Background(), &config.Config{}, rdb)
	require.NoError(t, err)
	require.IsType(t, &sessions.RedisRepository{}, s.Sessions)
}

func TestConnectRedis_Unconfigured(t *testing.T) {
	require.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{}))
}

func TestUseTransactions_DisabledSkipsTopologyCheck(t *testing.T) {
	require.False(t, useTransactions(context.Background(), nil, false))
}
