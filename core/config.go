package core

import (
	"fmt"
	"strings"
	"time"
)

type StorePolicy string

const (
	StorePolicySingleton StorePolicy = "singleton"
	StorePolicyMulti     StorePolicy = "multi"
)

func (p StorePolicy) Validate() error {
	switch p {
	case StorePolicySingleton, StorePolicyMulti:
		return nil
	}
	return fmt.Errorf("core: unknown store policy: %s", string(p))
}

type StoreConfig struct {
	Policy string `koanf:"policy" mapstructure:"policy"`
}

type NonceConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type StateConfig struct {
	TTL time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type Config struct {
	ServiceName string      `koanf:"service_name" mapstructure:"service_name"`
	Store       StoreConfig `koanf:"store" mapstructure:"store"`
	Nonce       NonceConfig `koanf:"nonce" mapstructure:"nonce"`
	State       StateConfig `koanf:"state" mapstructure:"state"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "keyring",
		Store:       StoreConfig{Policy: string(StorePolicySingleton)},
		Nonce:       NonceConfig{TTL: defaultNonceTTL},
		State:       StateConfig{TTL: defaultStateTTL},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if policy := strings.TrimSpace(c.Store.Policy); policy != "" {
		if err := StorePolicy(policy).Validate(); err != nil {
			return err
		}
	}
	if c.Nonce.TTL < 0 {
		return fmt.Errorf("core: nonce ttl must not be negative")
	}
	if c.State.TTL < 0 {
		return fmt.Errorf("core: state ttl must not be negative")
	}
	return nil
}

func (c Config) StorePolicy() StorePolicy {
	policy := strings.TrimSpace(c.Store.Policy)
	if policy == "" {
		return StorePolicySingleton
	}
	return StorePolicy(policy)
}
