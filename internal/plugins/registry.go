// Package plugins provides a registry of input sources and manifest writers.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/ArionMiles/invoicedl/pkg/api"
	"github.com/ArionMiles/invoicedl/pkg/config"
)

// SourcePlugin builds an api.Source from configuration.
type SourcePlugin interface {
	// Name returns the plugin name (e.g., "xlsx", "sheets").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewSource creates a new source. httpClient is nil when no plugin in use needs OAuth.
	NewSource(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Source, error)
}

// WriterPlugin builds a manifest api.Writer from configuration.
type WriterPlugin interface {
	// Name returns the plugin name (e.g., "csv", "postgres").
	Name() string
	// Description returns a human-readable description.
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	// NewWriter creates a new writer. httpClient is nil when no plugin in use needs OAuth.
	NewWriter(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error)
}

// Registry manages available source and writer plugins.
type Registry struct {
	sources map[string]SourcePlugin
	writers map[string]WriterPlugin
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]SourcePlugin),
		writers: make(map[string]WriterPlugin),
	}
}

// RegisterSource registers a source plugin.
func (r *Registry) RegisterSource(plugin SourcePlugin) error {
	name := plugin.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source plugin %q already registered", name)
	}
	r.sources[name] = plugin
	return nil
}

// RegisterWriter registers a writer plugin.
func (r *Registry) RegisterWriter(plugin WriterPlugin) error {
	name := plugin.Name()
	if _, exists := r.writers[name]; exists {
		return fmt.Errorf("writer plugin %q already registered", name)
	}
	r.writers[name] = plugin
	return nil
}

// GetSource returns a source plugin by name.
func (r *Registry) GetSource(name string) (SourcePlugin, error) {
	plugin, exists := r.sources[name]
	if !exists {
		return nil, fmt.Errorf("source plugin %q not found", name)
	}
	return plugin, nil
}

// GetWriter returns a writer plugin by name.
func (r *Registry) GetWriter(name string) (WriterPlugin, error) {
	plugin, exists := r.writers[name]
	if !exists {
		return nil, fmt.Errorf("writer plugin %q not found", name)
	}
	return plugin, nil
}

// ListSources returns all registered source plugins sorted by name.
func (r *Registry) ListSources() []SourcePlugin {
	plugins := make([]SourcePlugin, 0, len(r.sources))
	for _, plugin := range r.sources {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// ListWriters returns all registered writer plugins sorted by name.
func (r *Registry) ListWriters() []WriterPlugin {
	plugins := make([]WriterPlugin, 0, len(r.writers))
	for _, plugin := range r.writers {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool { return plugins[i].Name() < plugins[j].Name() })
	return plugins
}

// Scopes returns the sorted, deduplicated OAuth scopes required by the named
// source and writer. An empty writer name means no manifest writer.
func (r *Registry) Scopes(sourceName, writerName string) ([]string, error) {
	source, err := r.GetSource(sourceName)
	if err != nil {
		return nil, err
	}

	scopeSet := make(map[string]struct{})
	for _, scope := range source.RequiredScopes() {
		scopeSet[scope] = struct{}{}
	}
	if writerName != "" {
		writer, err := r.GetWriter(writerName)
		if err != nil {
			return nil, err
		}
		for _, scope := range writer.RequiredScopes() {
			scopeSet[scope] = struct{}{}
		}
	}

	scopes := make([]string, 0, len(scopeSet))
	for scope := range scopeSet {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

// CreateSource creates a source instance from a plugin.
func (r *Registry) CreateSource(ctx context.Context, name string, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Source, error) {
	plugin, err := r.GetSource(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewSource(ctx, httpClient, cfg, logger)
}

// CreateWriter creates a writer instance from a plugin.
func (r *Registry) CreateWriter(ctx context.Context, name string, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Writer, error) {
	plugin, err := r.GetWriter(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewWriter(ctx, httpClient, cfg, logger)
}
