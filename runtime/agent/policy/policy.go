// Package policy implements the Permissions & Approval Gate (spec.md §4.H):
// per-category and per-tool rules, session grants, YOLO mode, and the
// approve/decline/always-allow-category decision contract that gates a tool
// dispatch whose effective rule is "ask".
//
// Grounded on the teacher's agents/runtime/policy.Engine/Input/Decision
// contract (turn-level tool filtering) and features/policy/basic.Engine
// (allow/block evaluation), generalized from a binary allow/block list to
// the three-state allow/ask/deny model the spec requires, plus the
// session-grant and YOLO state the teacher's policy package does not have.
package policy

import (
	"context"
	"sync"
)

// Category is the coarse axis permission rules are keyed on (spec.md §4.H).
type Category string

const (
	CategoryRead    Category = "read"
	CategoryEdit    Category = "edit"
	CategoryExecute Category = "execute"
	CategoryMCP     Category = "mcp"
)

// Rule is a per-category or per-tool effective policy.
type Rule string

const (
	RuleAllow Rule = "allow"
	RuleAsk   Rule = "ask"
	RuleDeny  Rule = "deny"
)

// Decision is the outcome returned to a caller resuming a suspended
// tool-approval run (spec.md §4.H, §4.C "Approval gate").
type Decision string

const (
	DecisionApprove            Decision = "approve"
	DecisionDecline            Decision = "decline"
	DecisionAlwaysAllowCategory Decision = "always_allow_category"
	DecisionYOLO               Decision = "yolo"
)

// ToolMetadata describes a candidate tool evaluated by the gate. Mirrors the
// teacher's policy.ToolMetadata shape, adding Category and RequiresApproval
// (spec.md's ToolDescriptor fields §3).
type ToolMetadata struct {
	ID              string
	Name            string
	Category        Category
	RequiresApproval bool
}

// Rules holds the static, configured policy for a session: one rule per
// category and an optional per-tool override map (spec.md §4.H).
type Rules struct {
	CategoryRules map[Category]Rule
	ToolOverrides map[string]Rule
}

// DefaultRules returns the conservative default: read is allowed, everything
// else requires approval.
func DefaultRules() Rules {
	return Rules{
		CategoryRules: map[Category]Rule{
			CategoryRead:    RuleAllow,
			CategoryEdit:    RuleAsk,
			CategoryExecute: RuleAsk,
			CategoryMCP:     RuleAsk,
		},
	}
}

// Grants is the session-local mutable state accumulated by approval
// decisions: category/tool grants and YOLO mode (spec.md §4.H, §5 "Global
// mutable state"). It is process-local and cleared on process exit, per
// spec.md §4.H.
type Grants struct {
	mu               sync.Mutex
	categories       map[Category]struct{}
	tools            map[string]struct{}
	yolo             bool
	persistentYOLO   bool
}

// NewGrants returns an empty Grants value.
func NewGrants() *Grants {
	return &Grants{categories: map[Category]struct{}{}, tools: map[string]struct{}{}}
}

// AllowCategory adds a standing session grant for category, equivalent to an
// always_allow_category decision.
func (g *Grants) AllowCategory(c Category) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.categories[c] = struct{}{}
}

// AllowTool adds a standing session grant for a single tool id.
func (g *Grants) AllowTool(toolID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tools[toolID] = struct{}{}
}

// SetYOLO enables or disables YOLO mode. persistent marks the flag as a
// thread setting that should survive process-local session resets (the
// caller is responsible for actually persisting it to thread storage);
// Grants itself only tracks the in-memory effective value.
func (g *Grants) SetYOLO(on, persistent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.yolo = on
	g.persistentYOLO = persistent
}

// YOLO reports whether YOLO mode is currently active.
func (g *Grants) YOLO() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.yolo
}

func (g *Grants) categoryGranted(c Category) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.categories[c]
	return ok
}

func (g *Grants) toolGranted(toolID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.tools[toolID]
	return ok
}

// Gate evaluates Rules and Grants to decide whether a tool call may proceed,
// needs approval, or is denied.
type Gate struct {
	Rules  Rules
	Grants *Grants
}

// New constructs a Gate. grants may be shared across multiple Gate values
// scoped to the same session; a nil grants creates a fresh one.
func New(rules Rules, grants *Grants) *Gate {
	if grants == nil {
		grants = NewGrants()
	}
	return &Gate{Rules: rules, Grants: grants}
}

// Effective computes the effective Rule for a tool, applying (in order, per
// spec.md §4.H "Deny at any level is final; ask yields to the user; allow
// bypasses"): YOLO override, session grants, per-tool override, per-category
// rule, falling back to RuleAsk.
func (g *Gate) Effective(ctx context.Context, tool ToolMetadata) Rule {
	if g.Grants.YOLO() {
		return RuleAllow
	}
	if g.Grants.toolGranted(tool.ID) || g.Grants.categoryGranted(tool.Category) {
		return RuleAllow
	}
	if rule, ok := g.Rules.ToolOverrides[tool.ID]; ok {
		return rule
	}
	if rule, ok := g.Rules.CategoryRules[tool.Category]; ok {
		return rule
	}
	if tool.RequiresApproval {
		return RuleAsk
	}
	return RuleAsk
}

// RequiresApproval reports whether dispatch must suspend for a
// tool_approval_required event before executing tool (spec.md §4.C).
func (g *Gate) RequiresApproval(ctx context.Context, tool ToolMetadata) bool {
	switch g.Effective(ctx, tool) {
	case RuleDeny:
		return false // caller must reject the call outright, not suspend
	case RuleAllow:
		return false
	default:
		return true
	}
}

// Denied reports whether tool is unconditionally denied (no approval can
// unlock it without a rule change).
func (g *Gate) Denied(ctx context.Context, tool ToolMetadata) bool {
	return g.Effective(ctx, tool) == RuleDeny
}

// Resolve applies a resume-time Decision to Grants and reports whether the
// tool call may now proceed (spec.md §4.H, §4.C "Approval required" scenario).
func (g *Gate) Resolve(tool ToolMetadata, decision Decision) (approved bool) {
	switch decision {
	case DecisionApprove:
		return true
	case DecisionDecline:
		return false
	case DecisionAlwaysAllowCategory:
		g.Grants.AllowCategory(tool.Category)
		return true
	case DecisionYOLO:
		g.Grants.SetYOLO(true, false)
		return true
	default:
		return false
	}
}
