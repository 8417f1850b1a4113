package browseragent

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ExecContext carries the effectful dependencies an action's Execute
// callback needs, without coupling the registry to any concrete browser
// implementation.
type ExecContext struct {
	Ctx     context.Context
	Browser BrowserFacade
	// BaseDir scopes file_path-shaped parameters (e.g. upload_file) via
	// sandbox.SanitizeArg.
	BaseDir string
}

// ActionRegistry holds named tool definitions with typed parameter schemas;
// it is the sole trust boundary between LLM output and side-effecting code.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]*ActionDefinition
}

// NewActionRegistry returns an empty registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]*ActionDefinition)}
}

// Register validates and inserts a definition. Duplicates are rejected
// unless overwrite is true.
func (r *ActionRegistry) Register(def *ActionDefinition, overwrite bool) error {
	if def == nil {
		return newConfigError("nil action definition")
	}
	if def.Name == "" {
		return newConfigError("action name must not be empty")
	}
	if def.Execute == nil {
		return newConfigError("action %q: execute callback must not be nil", def.Name)
	}
	for name, p := range def.Parameters {
		if p == nil {
			return newConfigError("action %q: parameter %q is nil", def.Name, name)
		}
		if p.Name == "" {
			p.Name = name
		}
		if err := p.validate(); err != nil {
			return newConfigError("action %q: %v", def.Name, err)
		}
	}
	if len(def.ParamOrder) == 0 {
		for name := range def.Parameters {
			def.ParamOrder = append(def.ParamOrder, name)
		}
		sort.Strings(def.ParamOrder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[def.Name]; exists && !overwrite {
		return newConfigError("action %q already registered", def.Name)
	}
	r.actions[def.Name] = def
	return nil
}

// Has reports whether an action is registered under name.
func (r *ActionRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Get returns the definition registered under name.
func (r *ActionRegistry) Get(name string) (*ActionDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.actions[name]
	return d, ok
}

// Remove deletes the action registered under name, if any.
func (r *ActionRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actions, name)
}

// GetAll returns every registered definition.
func (r *ActionRegistry) GetAll() []*ActionDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ActionDefinition, 0, len(r.actions))
	for _, d := range r.actions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetActionNames returns the sorted set of registered action names.
func (r *ActionRegistry) GetActionNames() []string {
	all := r.GetAll()
	names := make([]string, len(all))
	for i, d := range all {
		names[i] = d.Name
	}
	return names
}

// ValidateParameters checks params against the action's schema. When deep is
// true, the check is strict (no unknown keys; nested properties/items
// enforced recursively). When shallow, only required-key presence,
// unknown-key absence, and top-level type tags are checked.
func (r *ActionRegistry) ValidateParameters(name string, params map[string]any, deep bool) (bool, []string) {
	def, ok := r.Get(name)
	if !ok {
		return false, []string{fmt.Sprintf("unknown action %q", name)}
	}
	var issues []string
	for pname := range params {
		if _, ok := def.Parameters[pname]; !ok {
			issues = append(issues, fmt.Sprintf("unknown parameter %q", pname))
		}
	}
	for pname, p := range def.Parameters {
		v, present := params[pname]
		if !present {
			if p.Required {
				issues = append(issues, fmt.Sprintf("missing required parameter %q", pname))
			}
			continue
		}
		issues = append(issues, validateValue(pname, p, v, deep)...)
	}
	return len(issues) == 0, issues
}

func validateValue(path string, p *ActionParameter, v any, deep bool) []string {
	var issues []string
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return []string{fmt.Sprintf("%s: expected string", path)}
		}
		if deep {
			if p.compiledPattern != nil && !p.compiledPattern.MatchString(s) {
				issues = append(issues, fmt.Sprintf("%s: does not match pattern %q", path, p.Pattern))
			}
			if len(p.Enum) > 0 && !containsStr(p.Enum, s) {
				issues = append(issues, fmt.Sprintf("%s: not one of %v", path, p.Enum))
			}
		}
	case TypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return []string{fmt.Sprintf("%s: expected number", path)}
		}
		if deep {
			if p.Minimum != nil && n < *p.Minimum {
				issues = append(issues, fmt.Sprintf("%s: below minimum %v", path, *p.Minimum))
			}
			if p.Maximum != nil && n > *p.Maximum {
				issues = append(issues, fmt.Sprintf("%s: above maximum %v", path, *p.Maximum))
			}
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return []string{fmt.Sprintf("%s: expected boolean", path)}
		}
	case TypeObject:
		m, ok := v.(map[string]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected object", path)}
		}
		if deep {
			for k := range m {
				if _, ok := p.Properties[k]; !ok {
					issues = append(issues, fmt.Sprintf("%s.%s: unknown property", path, k))
				}
			}
			for k, sub := range p.Properties {
				sv, present := m[k]
				if !present {
					if sub.Required {
						issues = append(issues, fmt.Sprintf("%s.%s: missing required property", path, k))
					}
					continue
				}
				issues = append(issues, validateValue(path+"."+k, sub, sv, deep)...)
			}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return []string{fmt.Sprintf("%s: expected array", path)}
		}
		if deep && p.Items != nil {
			for i, item := range arr {
				issues = append(issues, validateValue(fmt.Sprintf("%s[%d]", path, i), p.Items, item, deep)...)
			}
		}
	}
	return issues
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ExecuteAction deeply validates params, then invokes the action's callback.
// Callback errors are re-raised wrapped with the action name.
func (r *ActionRegistry) ExecuteAction(ec ExecContext, name string, params map[string]any) (any, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, newConfigError("unknown action %q", name)
	}
	if valid, issues := r.ValidateParameters(name, params, true); !valid {
		return nil, &ValidationError{Action: name, Issues: issues}
	}
	result, err := def.Execute(ec, params)
	if err != nil {
		return nil, &ExecutionError{Action: name, Err: err}
	}
	return result, nil
}

// GetPromptDescription returns a human-readable listing of every registered
// action, used by the LLM system prompt. The page parameter is accepted for
// future per-page filtering; the core returns the full catalog.
func (r *ActionRegistry) GetPromptDescription(page any) string {
	var out string
	for _, d := range r.GetAll() {
		out += fmt.Sprintf("- %s: %s\n", d.Name, d.Description)
		for _, pname := range d.ParamOrder {
			p := d.Parameters[pname]
			req := ""
			if p.Required {
				req = " (required)"
			}
			out += fmt.Sprintf("    %s: %s%s - %s\n", pname, p.Type, req, p.Description)
		}
	}
	return out
}

// ParamQuery is one constraint in a FindActionByParameter query: a parameter
// must exist with the given type, and if Value is non-empty and the parameter
// declares an enum, that enum must permit the value.
type ParamQuery struct {
	Name  string
	Type  ParamType
	Value string
}

// FindActionByParameter returns the names of actions whose schema satisfies
// every query constraint (AND across keys).
func (r *ActionRegistry) FindActionByParameter(queries []ParamQuery) []string {
	var out []string
	for _, d := range r.GetAll() {
		matches := true
		for _, q := range queries {
			p, ok := d.Parameters[q.Name]
			if !ok || p.Type != q.Type {
				matches = false
				break
			}
			if q.Value != "" && len(p.Enum) > 0 && !containsStr(p.Enum, q.Value) {
				matches = false
				break
			}
		}
		if matches {
			out = append(out, d.Name)
		}
	}
	return out
}
