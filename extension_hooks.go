package keyring

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-keyring/core"
)

// ServicePack is a named bundle of service implementations a downstream
// module contributes, registered as one unit.
type ServicePack struct {
	Name     string
	Services []core.Service
}

// ActionHookPack is a named bundle of action hooks a downstream module
// attaches to the handshake lifecycle.
type ActionHookPack struct {
	Name  string
	Hooks []core.ActionHook
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects downstream contributions before the keyring is
// assembled. Registration is append-only; packs apply in name order so
// composition stays deterministic.
type ExtensionHooks struct {
	mu sync.RWMutex

	servicePacks map[string]ServicePack
	hookPacks    map[string]ActionHookPack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		servicePacks: map[string]ServicePack{},
		hookPacks:    map[string]ActionHookPack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterServicePack(pack ServicePack) error {
	if h == nil {
		return fmt.Errorf("keyring: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("keyring: service pack name is required")
	}
	if len(pack.Services) == 0 {
		return fmt.Errorf("keyring: service pack %q has no services", name)
	}

	normalized := ServicePack{
		Name:     name,
		Services: append([]core.Service(nil), pack.Services...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.servicePacks[name]; exists {
		return fmt.Errorf("keyring: service pack %q already registered", name)
	}
	h.servicePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterActionHookPack(pack ActionHookPack) error {
	if h == nil {
		return fmt.Errorf("keyring: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("keyring: action hook pack name is required")
	}
	if len(pack.Hooks) == 0 {
		return fmt.Errorf("keyring: action hook pack %q has no hooks", name)
	}

	normalized := ActionHookPack{
		Name:  name,
		Hooks: append([]core.ActionHook(nil), pack.Hooks...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.hookPacks[name]; exists {
		return fmt.Errorf("keyring: action hook pack %q already registered", name)
	}
	h.hookPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("keyring: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("keyring: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("keyring: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("keyring: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

func (h *ExtensionHooks) ApplyServicePacks(registry core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("keyring: registry is required")
	}

	packs := h.ServicePacks()
	for _, pack := range packs {
		for _, service := range pack.Services {
			if service == nil {
				return fmt.Errorf("keyring: service pack %q contains nil service", pack.Name)
			}
			if err := registry.Register(service); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyActionHookPacks(coordinator *core.ActionHookCoordinator) error {
	if h == nil {
		return nil
	}
	if coordinator == nil {
		return fmt.Errorf("keyring: hook coordinator is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.hookPacks))
	for name := range h.hookPacks {
		names = append(names, name)
	}
	sort.Strings(names)
	packs := make([]ActionHookPack, 0, len(names))
	for _, name := range names {
		packs = append(packs, h.hookPacks[name])
	}
	h.mu.RUnlock()

	for _, pack := range packs {
		for _, hook := range pack.Hooks {
			if hook == nil {
				return fmt.Errorf("keyring: action hook pack %q contains nil hook", pack.Name)
			}
			coordinator.Register(hook)
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("keyring: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ServicePacks() []ServicePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.servicePacks))
	for name := range h.servicePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ServicePack, 0, len(names))
	for _, name := range names {
		pack := h.servicePacks[name]
		out = append(out, ServicePack{
			Name:     pack.Name,
			Services: append([]core.Service(nil), pack.Services...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
