package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	EventConnectionDeleted = "connection_deleted"
	EventError             = "error"
)

// PreActionEventName is the announcement fired before a handshake action
// runs; ActionEventName fires after it completes.
func PreActionEventName(serviceName, action string) string {
	return "pre_" + strings.TrimSpace(serviceName) + "_" + strings.TrimSpace(action)
}

func ActionEventName(serviceName, action string) string {
	return strings.TrimSpace(serviceName) + "_" + strings.TrimSpace(action)
}

// ActionHookCoordinator fans events out to registered hooks synchronously
// in registration order. Hook failures are aggregated and reported to the
// caller for logging; they never veto the action that already happened.
type ActionHookCoordinator struct {
	mu    sync.RWMutex
	hooks []ActionHook
}

func NewActionHookCoordinator() *ActionHookCoordinator {
	return &ActionHookCoordinator{hooks: make([]ActionHook, 0)}
}

func (c *ActionHookCoordinator) Register(hook ActionHook) {
	if c == nil || hook == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

func (c *ActionHookCoordinator) Emit(ctx context.Context, event ActionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var hookErr error
	for _, hook := range c.registered() {
		if hook == nil {
			continue
		}
		if err := hook.OnEvent(ctx, event); err != nil {
			hookErr = errors.Join(hookErr, fmt.Errorf("action hook %q failed: %w", hookName(hook), err))
		}
	}
	return hookErr
}

func (c *ActionHookCoordinator) registered() []ActionHook {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ActionHook, len(c.hooks))
	copy(out, c.hooks)
	return out
}

func hookName(hook ActionHook) string {
	if hook == nil {
		return "unknown"
	}
	name := strings.TrimSpace(hook.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}

// StaticURLBuilder renders management links off a fixed base URL. Hosts
// with richer routing provide their own URLBuilder.
type StaticURLBuilder struct {
	Base string
}

func (b StaticURLBuilder) BuildActionURL(serviceName, action string, params map[string]string) string {
	base := strings.TrimRight(strings.TrimSpace(b.Base), "?&")
	values := url.Values{}
	if serviceName = strings.TrimSpace(serviceName); serviceName != "" {
		values.Set("service", serviceName)
	}
	if action = strings.TrimSpace(action); action != "" {
		values.Set("action", action)
	}
	for key, value := range params {
		if key = strings.TrimSpace(key); key != "" {
			values.Set(key, value)
		}
	}
	if len(values) == 0 {
		return base
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + values.Encode()
}
