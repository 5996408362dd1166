// Package registry implements the Tool Registry & Dispatch component
// (spec.md §4.C): it assembles the effective toolset for one LLM call from
// seven ordered sources, normalizes tool names, and dispatches invocations
// through the approval gate with streaming partial-input updates.
//
// Grounded on the teacher's runtime/agent/tools.ToolSpec (descriptor shape)
// and runtime/agent/runtime/agent_tools.go (multi-source tool assembly,
// agent-as-tool suspend/resume), generalized from Goa-codegen-bound
// ToolSpec/agent routing to the spec's source-ordered assembly and
// RunContext-based executor contract.
package registry

import (
	"fmt"
	"regexp"

	"github.com/agentgrove/corert/runtime/agent/coreerr"
	"github.com/agentgrove/corert/runtime/agent/policy"
)

// Source identifies which of the seven assembly sources contributed a tool
// (spec.md §4.C).
type Source string

const (
	SourceAssigned Source = "assigned"
	SourceMemory   Source = "memory"
	SourceToolset  Source = "toolset"
	SourceClient   Source = "client"
	SourceAgent    Source = "agent"
	SourceWorkflow Source = "workflow"
	SourceWorkspace Source = "workspace"
)

// assemblyOrder is the fixed source precedence of spec.md §4.C: later
// sources override earlier ones when the same raw tool id is redeclared.
var assemblyOrder = []Source{
	SourceAssigned, SourceMemory, SourceToolset, SourceClient,
	SourceAgent, SourceWorkflow, SourceWorkspace,
}

// ToolDescriptor describes one candidate tool (spec.md §3 "ToolDescriptor").
type ToolDescriptor struct {
	// ID is the tool's raw, pre-normalization identifier as declared by its
	// source.
	ID               string
	InputSchema      map[string]any
	OutputSchema     map[string]any
	RequiresApproval bool
	Category         policy.Category
	Source           Source
	Executor         Executor

	// normalizedName is computed during Assemble and cached for dispatch.
	normalizedName string
}

// NormalizedName returns the name this descriptor was registered under,
// after NormalizeName sanitization.
func (d ToolDescriptor) NormalizedName() string { return d.normalizedName }

var validNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]{0,62}$`)
var invalidCharRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// NormalizeName sanitizes raw into a valid tool name per spec.md §4.C:
// invalid characters become '_', a leading digit gets a '_' prefix, and the
// result is truncated to 63 characters.
func NormalizeName(raw string) string {
	name := invalidCharRe.ReplaceAllString(raw, "_")
	if name == "" {
		name = "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	if len(name) > 63 {
		name = name[:63]
	}
	if !validNameRe.MatchString(name) {
		// First character wasn't a letter/underscore after truncation
		// (e.g. truncation landed mid multi-byte sanitization); force one.
		name = "_" + name
		if len(name) > 63 {
			name = name[:63]
		}
	}
	return name
}

// Registry holds the assembled toolset for one LLM call.
type Registry struct {
	byName map[string]*ToolDescriptor
	order  []string
}

// Assemble builds a Registry from candidate descriptors grouped by source.
// Sources are applied in the fixed precedence order of spec.md §4.C: a tool
// whose raw ID was already registered by an earlier source is overridden in
// place (same logical tool, reprioritized). A different raw ID that
// normalizes to an already-used name is a genuine collision and returns
// coreerr.ErrToolNameCollision.
func Assemble(bySource map[Source][]ToolDescriptor) (*Registry, error) {
	reg := &Registry{byName: map[string]*ToolDescriptor{}}
	rawIDByName := map[string]string{}

	for _, src := range assemblyOrder {
		for _, d := range bySource[src] {
			d := d
			d.Source = src
			name := NormalizeName(d.ID)
			d.normalizedName = name

			if existingRaw, ok := rawIDByName[name]; ok {
				if existingRaw != d.ID {
					return nil, coreerr.Wrap(coreerr.DomainSystem, coreerr.ErrToolNameCollision.ID,
						fmt.Sprintf("tool %q and %q both normalize to %q", existingRaw, d.ID, name),
						coreerr.ErrToolNameCollision)
				}
				// Same logical tool redeclared by a higher-precedence
				// source: override in place, preserving assembly order.
				*reg.byName[name] = d
				continue
			}
			rawIDByName[name] = d.ID
			cp := d
			reg.byName[name] = &cp
			reg.order = append(reg.order, name)
		}
	}
	return reg, nil
}

// Lookup returns the descriptor registered under name, if any.
func (r *Registry) Lookup(name string) (*ToolDescriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Descriptors returns all assembled descriptors in assembly order.
func (r *Registry) Descriptors() []*ToolDescriptor {
	out := make([]*ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Metadata projects the registry into policy.ToolMetadata values for the
// approval gate (spec.md §4.H Input.Tools).
func (r *Registry) Metadata() []policy.ToolMetadata {
	out := make([]policy.ToolMetadata, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		out = append(out, policy.ToolMetadata{
			ID:               d.normalizedName,
			Name:             d.normalizedName,
			Category:         d.Category,
			RequiresApproval: d.RequiresApproval,
		})
	}
	return out
}

