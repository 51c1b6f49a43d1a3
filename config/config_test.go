package config

import (
	"os"
	"path/filepath"
	"testing"

	"payway/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8645" {
		t.Fatalf("rpc address = %q", cfg.RPCAddress)
	}
	if _, err := cfg.OwnerAddress(); err != nil {
		t.Fatalf("generated owner does not parse: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "owner.key")); err != nil {
		t.Fatalf("owner key not written: %v", err)
	}

	// A second load must read the same file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Owner != cfg.Owner {
		t.Fatalf("owner changed across loads")
	}
}

func TestLoadValidatesOwner(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("RPCAddress = \":8645\"\nDataDir = \"./data\"\nOwner = \"not-an-address\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid owner to fail")
	}
}

func TestLoadValidatesAllocations(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	owner := key.PubKey().Address().String()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "Owner = \"" + owner + "\"\n\n[[Allocation]]\nAddress = \"" + owner + "\"\nNativeAmount = \"banana\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid allocation amount to fail")
	}
}
