package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go-sa-licence-decoder/barcode"

	vaultApi "github.com/hashicorp/vault/api"
)

// KeyFiles lists the PEM file for each of the four barcode keys.
type KeyFiles struct {
	V1Block128 string `json:"v1_128"`
	V1Block74  string `json:"v1_74"`
	V2Block128 string `json:"v2_128"`
	V2Block74  string `json:"v2_74"`
}

type VaultConfig struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Mount   string `json:"mount"`
	Path    string `json:"path"`
}

// KeySource supplies the four PEM encoded public keys at startup.
type KeySource interface {
	LoadPEMBundle(ctx context.Context) (barcode.PEMBundle, error)
}

type FileKeySource struct {
	files KeyFiles
}

func NewFileKeySource(files KeyFiles) *FileKeySource {
	return &FileKeySource{files: files}
}

func (s *FileKeySource) LoadPEMBundle(ctx context.Context) (barcode.PEMBundle, error) {
	var bundle barcode.PEMBundle
	targets := []struct {
		name string
		path string
		dst  *[]byte
	}{
		{barcode.KeyV1Block128, s.files.V1Block128, &bundle.V1Block128},
		{barcode.KeyV1Block74, s.files.V1Block74, &bundle.V1Block74},
		{barcode.KeyV2Block128, s.files.V2Block128, &bundle.V2Block128},
		{barcode.KeyV2Block74, s.files.V2Block74, &bundle.V2Block74},
	}

	for _, target := range targets {
		if target.path == "" {
			return barcode.PEMBundle{}, fmt.Errorf("no key file configured for %s", target.name)
		}
		pemBytes, err := os.ReadFile(target.path)
		if err != nil {
			return barcode.PEMBundle{}, fmt.Errorf("failed to read key file for %s: %w", target.name, err)
		}
		*target.dst = pemBytes
	}
	return bundle, nil
}

// VaultKeySource reads the four keys from one KV v2 secret whose data holds the PEM
// strings under the key names v1_128, v1_74, v2_128 and v2_74.
type VaultKeySource struct {
	client *vaultApi.Client
	mount  string
	path   string
}

func NewVaultKeySource(config VaultConfig) (*VaultKeySource, error) {
	if config.Mount == "" || config.Path == "" {
		return nil, fmt.Errorf("vault mount and path must be configured")
	}

	vaultConfig := vaultApi.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}
	client, err := vaultApi.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}

	return &VaultKeySource{client: client, mount: config.Mount, path: config.Path}, nil
}

func (s *VaultKeySource) LoadPEMBundle(ctx context.Context) (barcode.PEMBundle, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, s.path)
	if err != nil {
		return barcode.PEMBundle{}, fmt.Errorf("failed to read key secret from vault: %w", err)
	}

	field := func(name string) ([]byte, error) {
		value, ok := secret.Data[name].(string)
		if !ok || value == "" {
			return nil, fmt.Errorf("vault secret %s/%s has no %s", s.mount, s.path, name)
		}
		return []byte(value), nil
	}

	var bundle barcode.PEMBundle
	if bundle.V1Block128, err = field(barcode.KeyV1Block128); err != nil {
		return barcode.PEMBundle{}, err
	}
	if bundle.V1Block74, err = field(barcode.KeyV1Block74); err != nil {
		return barcode.PEMBundle{}, err
	}
	if bundle.V2Block128, err = field(barcode.KeyV2Block128); err != nil {
		return barcode.PEMBundle{}, err
	}
	if bundle.V2Block74, err = field(barcode.KeyV2Block74); err != nil {
		return barcode.PEMBundle{}, err
	}
	return bundle, nil
}

func createKeySource(config *Config) (KeySource, error) {
	switch config.KeySource {
	case "", "file":
		slog.Info("Loading barcode keys from files")
		return NewFileKeySource(config.KeyFiles), nil
	case "vault":
		slog.Info("Loading barcode keys from vault", "mount", config.VaultConfig.Mount, "path", config.VaultConfig.Path)
		return NewVaultKeySource(config.VaultConfig)
	}
	return nil, fmt.Errorf("%v is not a valid key source", config.KeySource)
}

// loadKeySet reads and parses all four keys. Any failure is fatal for the service.
func loadKeySet(ctx context.Context, source KeySource) (*barcode.KeySet, error) {
	bundle, err := source.LoadPEMBundle(ctx)
	if err != nil {
		return nil, err
	}
	return barcode.LoadKeySet(bundle)
}
