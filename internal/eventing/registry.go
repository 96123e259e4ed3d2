package eventing

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Registry knows the concrete type behind each event kind.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]reflect.Type
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]reflect.Type)}
}

// Register makes an event type decodable. Pass a zero value or pointer.
func (r *Registry) Register(sample any) {
	if r == nil || sample == nil {
		return
	}
	t := reflect.TypeOf(sample)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.Lock()
	r.kinds[t.String()] = t
	r.mu.Unlock()
}

// Decode rebuilds the concrete event from an envelope body.
func (r *Registry) Decode(env Envelope) (any, error) {
	if r == nil {
		return nil, errors.New("eventing: nil registry")
	}
	r.mu.RLock()
	t, ok := r.kinds[env.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("eventing: unregistered event kind %q", env.Kind)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal(env.Body, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
