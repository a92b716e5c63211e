package config

import (
	"github.com/samirrijal/etxebila/internal/core/domain"
	"github.com/samirrijal/etxebila/internal/core/usecases"
	"github.com/samirrijal/etxebila/internal/pkg/geospatial"
)

// PlannerConfig maps the geo and orchestrator sections onto the planner.
func (c *Config) PlannerConfig() usecases.PlannerConfig {
	return usecases.PlannerConfig{
		MaxFilterChars: c.Geo.MaxFilterChars,
		Simplify: geospatial.SimplifyOptions{
			StartTolerance: c.Geo.StartTolerance,
			MaxTolerance:   c.Geo.MaxTolerance,
			Growth:         c.Geo.ToleranceGrowth,
		},
		DefaultRadiusMeters: c.Geo.DefaultRadiusMeters,
		OversizePolicy:      usecases.OversizePolicy(c.Orchestrator.OversizePolicy),
	}
}

// OrchestratorConfig maps the orchestrator and search sections onto a
// session configuration.
func (c *Config) OrchestratorConfig() usecases.OrchestratorConfig {
	o := c.Orchestrator
	return usecases.OrchestratorConfig{
		PageSize:     o.PageSize,
		TextPageSize: o.TextPageSize,
		AutoLoad:     o.AutoLoad,
		PageDelay:    o.PageDelay(),
		QueryBy:      c.Search.PropertyQueryBy,
		Tuning: domain.IndexTuning{
			ExhaustiveSearch: o.ExhaustiveSearch,
			SearchCutoffMs:   o.SearchCutoffMs,
			UseCache:         o.UseCache,
			MaxCandidates:    o.MaxCandidates,
		},
		FallbackTTL: o.FallbackTTLSeconds,
	}
}
