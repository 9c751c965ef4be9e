package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// NewEnvProvider returns the "env" provider.
func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (*EnvProvider) Name() string { return "env" }

// Resolve returns the value of the variable named ref, or ErrNotFound if it
// is unset.
func (*EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %q", ErrNotFound, ref)
	}
	return v, nil
}

func (*EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path, e.g. a mounted secret.
type FileProvider struct {
	// Dir, when set, is prepended to relative references.
	Dir string
}

// NewFileProvider returns the "file" provider rooted at dir.
func NewFileProvider(dir string) *FileProvider { return &FileProvider{Dir: dir} }

func (*FileProvider) Name() string { return "file" }

// Resolve reads the file at ref and trims surrounding whitespace.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := ref
	if p.Dir != "" && !strings.HasPrefix(ref, "/") {
		path = p.Dir + "/" + ref
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %q", ErrNotFound, path)
		}
		return "", fmt.Errorf("secret: read %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (*FileProvider) Close() error { return nil }

// StaticProvider resolves references from an in-memory map.
type StaticProvider struct {
	name   string
	mu     sync.RWMutex
	values map[string]string
}

// NewStaticProvider returns a provider named name serving values.
// The map is copied.
func NewStaticProvider(name string, values map[string]string) *StaticProvider {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticProvider{name: name, values: copied}
}

func (p *StaticProvider) Name() string { return p.name }

// Set stores value under ref.
func (p *StaticProvider) Set(ref, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[ref] = value
}

func (p *StaticProvider) Resolve(_ context.Context, ref string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrNotFound, p.name, ref)
	}
	return v, nil
}

func (p *StaticProvider) Close() error { return nil }

var (
	_ Provider = (*EnvProvider)(nil)
	_ Provider = (*FileProvider)(nil)
	_ Provider = (*StaticProvider)(nil)
)
