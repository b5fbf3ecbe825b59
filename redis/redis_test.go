package redis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedisConfigFromJSON(t *testing.T) {
	var config struct {
		Redis    RedisConfig         `json:"redis_config"`
		Sentinel RedisSentinelConfig `json:"redis_sentinel_config"`
	}
	err := json.Unmarshal([]byte(`{
		"redis_config": {"host": "localhost", "port": 6379, "password": "secret", "namespace": "decoder"},
		"redis_sentinel_config": {"sentinel_host": "sentinel", "sentinel_port": 26379, "master_name": "mymaster", "sentinel_username": "sentinel", "namespace": "decoder"}
	}`), &config)
	require.NoError(t, err)

	require.Equal(t, RedisConfig{Host: "localhost", Port: 6379, Password: "secret", Namespace: "decoder"}, config.Redis)
	require.Equal(t, "sentinel", config.Sentinel.SentinelHost)
	require.Equal(t, 26379, config.Sentinel.SentinelPort)
	require.Equal(t, "mymaster", config.Sentinel.MasterName)
	require.Equal(t, "sentinel", config.Sentinel.SentinelUsername)
	require.Equal(t, "decoder", config.Sentinel.Namespace)
}

func TestNewRedisClient_Fail(t *testing.T) {
	tests := []struct {
		name    string
		config  RedisConfig
		wantErr string
	}{
		{"empty host", RedisConfig{}, "redis host is not configured"},
		{"unknown host", RedisConfig{Host: "invalid-redis-host-that-does-not-exist", Port: 6379}, "failed to connect to Redis"},
		{"invalid port", RedisConfig{Host: "localhost", Port: 99999}, "failed to connect to Redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(&tt.config)
			require.Error(t, err)
			require.Nil(t, client)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRedisSentinelClient_Fail(t *testing.T) {
	tests := []struct {
		name    string
		config  RedisSentinelConfig
		wantErr string
	}{
		{"empty master name", RedisSentinelConfig{SentinelHost: "localhost", SentinelPort: 26379}, "master name is not configured"},
		{"unknown host", RedisSentinelConfig{SentinelHost: "invalid-sentinel-host-that-does-not-exist", SentinelPort: 26379, MasterName: "mymaster"}, "failed to connect to Redis through Sentinel"},
		{"invalid port", RedisSentinelConfig{SentinelHost: "localhost", SentinelPort: 99999, MasterName: "mymaster"}, "failed to connect to Redis through Sentinel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisSentinelClient(&tt.config)
			require.Error(t, err)
			require.Nil(t, client)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
