package source

import (
	"context"
	"sync"
	"time"

	"github.com/quy267/spring-drools-integration-sub002/internal/utils"
)

// MemoryProvider is an in-process source registry. It backs programmatic
// rule registration (AddRule/BuildRule) and tests.
type MemoryProvider struct {
	mu      sync.RWMutex
	content map[string][]byte
	descs   map[string]Descriptor
}

// NewMemoryProvider creates an empty registry.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		content: make(map[string][]byte),
		descs:   make(map[string]Descriptor),
	}
}

// Register adds or replaces the GRL content for the given id and returns
// its new descriptor.
func (p *MemoryProvider) Register(id string, grl []byte) Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()

	desc := Descriptor{
		ID:          id,
		Fingerprint: utils.Fingerprint(grl),
		ModTime:     time.Now(),
	}
	p.content[id] = append([]byte(nil), grl...)
	p.descs[id] = desc
	return desc
}

// Remove deletes the source with the given id, reporting whether it existed.
func (p *MemoryProvider) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.descs[id]; !ok {
		return false
	}
	delete(p.content, id)
	delete(p.descs, id)
	return true
}

func (p *MemoryProvider) Fetch(_ context.Context, id string) ([]byte, Descriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	desc, ok := p.descs[id]
	if !ok {
		return nil, Descriptor{}, ErrNotFound
	}
	return append([]byte(nil), p.content[id]...), desc, nil
}

func (p *MemoryProvider) Fingerprint(_ context.Context, id string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	desc, ok := p.descs[id]
	if !ok {
		return "", ErrNotFound
	}
	return desc.Fingerprint, nil
}

func (p *MemoryProvider) List(_ context.Context) ([]Descriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	descs := make([]Descriptor, 0, len(p.descs))
	for _, d := range p.descs {
		descs = append(descs, d)
	}
	return descs, nil
}
