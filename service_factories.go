package keyring

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-keyring/core"
	"github.com/goliatone/go-keyring/providers"
)

func OAuth2Service(cfg providers.OAuth2Config) (core.Service, error) {
	return providers.NewOAuth2Service(cfg)
}

func OAuth1Service(cfg providers.OAuth1Config) (core.Service, error) {
	return providers.NewOAuth1Service(cfg)
}

func BasicService(cfg providers.BasicConfig) (core.Service, error) {
	return providers.NewBasicService(cfg)
}

// RegisterServices registers every service in order and stops at the first
// failure, so duplicate names surface instead of being shadowed.
func RegisterServices(registry core.Registry, services ...core.Service) error {
	for _, service := range services {
		if err := registry.Register(service); err != nil {
			return err
		}
	}
	return nil
}

const (
	ServiceTypeOAuth2 = "oauth2"
	ServiceTypeOAuth1 = "oauth1"
	ServiceTypeBasic  = "basic"
)

// ServiceSpec is the declarative form of a service definition, typically
// decoded from host configuration. Exactly the config matching Type is read.
type ServiceSpec struct {
	Type   string                 `koanf:"type" mapstructure:"type"`
	OAuth2 providers.OAuth2Config `koanf:"oauth2" mapstructure:"oauth2"`
	OAuth1 providers.OAuth1Config `koanf:"oauth1" mapstructure:"oauth1"`
	Basic  providers.BasicConfig  `koanf:"basic" mapstructure:"basic"`
}

func BuildService(spec ServiceSpec) (core.Service, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case ServiceTypeOAuth2:
		return OAuth2Service(spec.OAuth2)
	case ServiceTypeOAuth1:
		return OAuth1Service(spec.OAuth1)
	case ServiceTypeBasic:
		return BasicService(spec.Basic)
	default:
		return nil, fmt.Errorf("keyring: unknown service type %q", spec.Type)
	}
}

// BuildServices constructs every spec and registers the results as one
// batch; nothing is registered when any spec fails to build.
func BuildServices(registry core.Registry, specs ...ServiceSpec) error {
	services := make([]core.Service, 0, len(specs))
	for _, spec := range specs {
		service, err := BuildService(spec)
		if err != nil {
			return err
		}
		services = append(services, service)
	}
	return RegisterServices(registry, services...)
}
