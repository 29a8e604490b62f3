package tools

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/chefbot/provider"
)

// Tool is one callable capability the model may request during a turn.
// Call returns observation text for the model; failures are folded into
// that text so a broken tool never aborts the turn.
type Tool interface {
	Def() provider.ToolDef
	Call(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry is the fixed set of tools exposed to the orchestrator.
type Registry struct {
	order  []string
	byName map[string]Tool
}

// NewRegistry builds a registry from the given tools in exposure order.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Def().Name
		if _, dup := r.byName[name]; dup {
			continue
		}
		r.order = append(r.order, name)
		r.byName[name] = t
	}
	return r
}

// Defs returns the tool definitions advertised to the model.
func (r *Registry) Defs() []provider.ToolDef {
	defs := make([]provider.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Def())
	}
	return defs
}

// Call dispatches a tool invocation by name.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Call(ctx, args)
}
