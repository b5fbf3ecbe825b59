package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go-sa-licence-decoder/barcode"
	log "go-sa-licence-decoder/logging"
	"go-sa-licence-decoder/metrics"
	redis "go-sa-licence-decoder/redis"

	"golang.org/x/sync/semaphore"
)

const DEFAULT_CACHE_TTL_SECONDS = 600
const DEFAULT_BATCH_WORKERS = 4

type IssuanceConfig struct {
	JwtPrivateKeyPath string `json:"jwt_private_key_path"`
	IrmaServerUrl     string `json:"irma_server_url"`
	IssuerId          string `json:"issuer_id"`
	Credential        string `json:"credential"`
	SdJwtBatchSize    uint   `json:"sd_jwt_batch_size"`
}

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`
	LogLevel     string       `json:"log_level,omitempty"`
	LogFormat    string       `json:"log_format,omitempty"`

	KeySource   string      `json:"key_source"`
	KeyFiles    KeyFiles    `json:"key_files,omitempty"`
	VaultConfig VaultConfig `json:"vault_config,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
	CacheTtlSeconds     int                       `json:"cache_ttl_seconds,omitempty"`

	MaxConcurrentDecodes int `json:"max_concurrent_decodes,omitempty"`
	BatchWorkers         int `json:"batch_workers,omitempty"`

	// Issuance is optional, without it the issue endpoint answers 503
	Issuance *IssuanceConfig `json:"issuance,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "path", *configPath, "error", err)
		os.Exit(1)
	}

	log.InitLogger(config.LogLevel, config.LogFormat)
	slog.Info("using config", "path", *configPath)

	keySource, err := createKeySource(&config)
	if err != nil {
		slog.Error("failed to instantiate key source", "error", err)
		os.Exit(1)
	}

	keySet, err := loadKeySet(context.Background(), keySource)
	if err != nil {
		var keyErr *barcode.KeyMaterialParseError
		if errors.As(err, &keyErr) {
			slog.Error("invalid barcode key material", "key", keyErr.Key, "error", err)
		} else {
			slog.Error("failed to load barcode keys", "error", err)
		}
		os.Exit(1)
	}

	recordCache, err := createRecordCache(&config)
	if err != nil {
		slog.Error("failed to instantiate record cache", "error", err)
		os.Exit(1)
	}

	serverState := ServerState{
		decoder:      NewLicenceDecoder(keySet),
		cache:        recordCache,
		converter:    DrivingLicenceConverterImpl{},
		metrics:      metrics.New(),
		decodeSlots:  semaphore.NewWeighted(int64(maxConcurrentDecodes(&config))),
		batchWorkers: batchWorkers(&config),
	}

	if config.Issuance != nil {
		jwtCreator, err := NewIrmaJwtCreator(
			config.Issuance.JwtPrivateKeyPath,
			config.Issuance.IssuerId,
			config.Issuance.Credential,
			config.Issuance.SdJwtBatchSize,
		)
		if err != nil {
			slog.Error("failed to instantiate jwt creator", "error", err)
			os.Exit(1)
		}
		serverState.jwtCreator = jwtCreator
		serverState.irmaServerURL = config.Issuance.IrmaServerUrl
	} else {
		slog.Warn("No issuance config, driving licence issuance is disabled")
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		_ = server.Stop()
	}()

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func maxConcurrentDecodes(config *Config) int {
	if config.MaxConcurrentDecodes > 0 {
		return config.MaxConcurrentDecodes
	}
	return runtime.NumCPU()
}

func batchWorkers(config *Config) int {
	if config.BatchWorkers > 0 {
		return config.BatchWorkers
	}
	return DEFAULT_BATCH_WORKERS
}

func cacheTtl(config *Config) time.Duration {
	if config.CacheTtlSeconds > 0 {
		return time.Duration(config.CacheTtlSeconds) * time.Second
	}
	return DEFAULT_CACHE_TTL_SECONDS * time.Second
}

func createRecordCache(config *Config) (RecordCache, error) {
	ttl := cacheTtl(config)
	switch config.StorageType {
	case "", "none":
		slog.Info("Record cache disabled")
		return NoRecordCache{}, nil
	case "memory":
		slog.Info("Using in memory record cache", "ttl", ttl)
		return NewInMemoryRecordCache(ttl), nil
	case "redis":
		slog.Info("Using redis record cache", "ttl", ttl)
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisRecordCache(client, config.RedisConfig.Namespace, ttl), nil
	case "redis_sentinel":
		slog.Info("Using redis sentinel record cache", "ttl", ttl)
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisRecordCache(client, config.RedisSentinelConfig.Namespace, ttl), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
