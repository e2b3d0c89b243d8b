package source

import (
	"context"
	"fmt"
	"time"

	"TrendIllustrator/internal/domain"
)

// Request carries all parameters required to execute one trending fetch.
type Request struct {
	At         time.Time
	SourceName string
	Platform   string
	Region     string
	URL        string
	MaxResults int
	Options    map[string]string
}

// Source captures a single ingestion strategy (YouTube API, HTML page, etc.).
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.Story, error)
}

// Registry keeps a mapping from source kinds to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Source, error) {
	if src, ok := r.sources[kind]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source kind %s is not registered", kind)
}
