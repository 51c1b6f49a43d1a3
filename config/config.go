package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"payway/crypto"
)

// Allocation seeds an address with starting balances when the ledger state is
// first created. Amounts are decimal strings so TOML round-trips arbitrary
// precision.
type Allocation struct {
	Address      string `toml:"Address"`
	NativeAmount string `toml:"NativeAmount,omitempty"`
	TokenAmount  string `toml:"TokenAmount,omitempty"`
}

type Config struct {
	RPCAddress  string       `toml:"RPCAddress"`
	DataDir     string       `toml:"DataDir"`
	Env         string       `toml:"Env,omitempty"`
	Owner       string       `toml:"Owner"`
	Allocations []Allocation `toml:"Allocation,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// (with a freshly generated owner identity) when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./payway-data"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for malformed fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner address required")
	}
	if _, err := crypto.DecodeAddress(strings.TrimSpace(c.Owner)); err != nil {
		return fmt.Errorf("config: invalid Owner address: %w", err)
	}
	for i, alloc := range c.Allocations {
		if _, err := crypto.DecodeAddress(strings.TrimSpace(alloc.Address)); err != nil {
			return fmt.Errorf("config: allocation %d: invalid address: %w", i, err)
		}
		for _, amount := range []string{alloc.NativeAmount, alloc.TokenAmount} {
			if strings.TrimSpace(amount) == "" {
				continue
			}
			parsed, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
			if !ok || parsed.Sign() < 0 {
				return fmt.Errorf("config: allocation %d: invalid amount %q", i, amount)
			}
		}
	}
	return nil
}

// OwnerAddress returns the parsed owner identity.
func (c *Config) OwnerAddress() ([20]byte, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.Owner))
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("config: generate owner key: %w", err)
	}
	owner := key.PubKey().Address()

	cfg := &Config{
		RPCAddress: ":8645",
		DataDir:    "./payway-data",
		Owner:      owner.String(),
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	keyPath := ownerKeyPath(path)
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key.Bytes())+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("config: write owner key: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ownerKeyPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "owner.key")
}
