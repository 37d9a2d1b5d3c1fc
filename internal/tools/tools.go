// Package tools defines the messaging capabilities the backend agent
// may invoke through the tool-call bridge.
package tools

import (
	"context"
	"log/slog"
	"sort"

	"github.com/alphahumanxyz/courier/internal/messenger"
	"github.com/alphahumanxyz/courier/internal/snapshot"
)

// Tool represents a callable capability.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"inputSchema"`
	// Summary renders a short human-readable line for activity logs.
	// Optional; nil means the tool name is used.
	Summary func(args map[string]any) string                                `json:"-"`
	Handler func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Describe returns the one-line activity description for an invocation.
func (t *Tool) Describe(args map[string]any) string {
	if t.Summary == nil {
		return t.Name
	}
	return t.Summary(args)
}

// Registry holds the available tools. It is built once at startup and
// read-only afterward, so lookups need no locking.
type Registry struct {
	tools  map[string]*Tool
	api    messenger.API
	snap   *snapshot.Store
	logger *slog.Logger
}

// NewRegistry creates a registry over the messenger API and the
// application state snapshot, populated with the built-in toolset.
func NewRegistry(api messenger.API, snap *snapshot.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		api:    api,
		snap:   snap,
		logger: logger,
	}
	r.registerChatTools()
	r.registerMessageTools()
	r.registerContactTools()
	r.registerProfileTools()
	r.registerMediaTools()
	r.registerPollTools()
	r.registerAdminTools()
	return r
}

// Register adds a tool. Duplicate names are a programming error in the
// fixed registration lists, so they panic at startup rather than
// silently shadowing.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; exists {
		panic("tools: duplicate registration of " + t.Name)
	}
	r.tools[t.Name] = t
}

// Get returns the named tool, or nil if unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// List returns descriptor metadata for every tool, name-sorted.
// Handler references never leave the registry.
func (r *Registry) List() []map[string]any {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		result = append(result, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.Parameters,
		})
	}
	return result
}

// resolveChat turns a chat_id argument (integer id or @username) into
// a numeric chat id, consulting the messenger API for username lookups.
func (r *Registry) resolveChat(ctx context.Context, args map[string]any, key string) (int64, error) {
	ref, err := ChatRef(args, key)
	if err != nil {
		return 0, err
	}
	if ref.Username == "" {
		return ref.ID, nil
	}
	id, err := r.api.ResolveUsername(ctx, ref.Username)
	if err != nil {
		return 0, err
	}
	return id, nil
}
