// Package source resolves configured content sources to their fetch
// strategies (RSS, scrape, EDGAR) and aggregates their candidates.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/domain"
	"NewsIngestor/internal/ports"
)

// Request carries one configured source to its strategy.
type Request struct {
	Name    string
	URL     string
	Section string
	Tags    []string
	Origin  domain.OriginType
	Options map[string]string
	Limit   int
}

// Strategy implements fetching for one kind of source.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.Candidate, error)
}

// Registry maps strategy names to implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("strategy %s is not registered", name)
}

// MultiSource implements ports.CandidateSource over the configured source
// list. A source that fails is logged and skipped; the batch continues.
type MultiSource struct {
	registry *Registry
	sources  []config.SourceConfig
	perLimit int
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*MultiSource)(nil)

// NewMultiSource wires the registry with config-defined sources.
func NewMultiSource(reg *Registry, sources []config.SourceConfig, perLimit int, logger *slog.Logger) *MultiSource {
	return &MultiSource{registry: reg, sources: sources, perLimit: perLimit, logger: logger}
}

// Fetch iterates over configured sources and aggregates their candidates.
func (m *MultiSource) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	if m.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	var aggregated []domain.Candidate
	for _, src := range m.sources {
		strategy, err := m.registry.Resolve(src.Strategy)
		if err != nil {
			m.logger.Error("source skipped", "source", src.Name, "error", err)
			continue
		}

		req := Request{
			Name:    src.Name,
			URL:     src.URL,
			Section: src.Section,
			Tags:    src.Tags,
			Origin:  domain.OriginType(src.Origin),
			Options: src.Options,
			Limit:   m.perLimit,
		}

		results, err := strategy.Fetch(ctx, req)
		if err != nil {
			m.logger.Error("source fetch failed, continuing", "source", src.Name, "error", err)
			continue
		}

		for i := range results {
			if results[i].SourceName == "" {
				results[i].SourceName = src.Name
			}
			if results[i].Origin == "" {
				results[i].Origin = req.Origin
			}
		}
		m.logger.Debug("source produced candidates", "source", src.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	m.logger.Info("sources fetched", "sources", len(m.sources), "candidates", len(aggregated))
	return aggregated, nil
}
