package funcall

import (
	"maps"
	"slices"
	"sync"
)

// Binder collects normalized functions for one request and parses the
// proposals that come back. Duplicate names fail fast at Bind time: two
// inputs producing the same descriptor name within one request is a caller
// error, not something to shadow silently.
type Binder struct {
	mu       sync.Mutex
	bindings map[string]*binding
}

// NewBinder creates an empty Binder.
func NewBinder() *Binder {
	return &Binder{bindings: make(map[string]*binding)}
}

// Bind normalizes each input (see Normalize for the accepted forms) and adds
// it to the binder. The first failure stops the batch and nothing from the
// failing input onward is added. Safe for concurrent use.
func (b *Binder) Bind(inputs ...any) error {
	for _, input := range inputs {
		if err := b.BindWith(input); err != nil {
			return err
		}
	}
	return nil
}

// BindWith normalizes one input with per-input options (e.g. WithName,
// WithDescription for bare structs) and adds it to the binder.
func (b *Binder) BindWith(input any, opts ...Option) error {
	bd, err := normalize(input, applyOptions(opts))
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name := bd.desc.Name
	if _, exists := b.bindings[name]; exists {
		return &SchemaError{Name: name, Reason: "duplicate function name"}
	}
	b.bindings[name] = bd
	return nil
}

// Descriptors returns all bound descriptors, sorted by name for
// deterministic export to LLM providers.
func (b *Binder) Descriptors() []*Descriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.bindings))
	for name := range b.bindings {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, b.bindings[name].desc)
	}
	return out
}

// Descriptor returns the bound descriptor with the given name, or (nil, false).
func (b *Binder) Descriptor(name string) (*Descriptor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd, ok := b.bindings[name]
	if !ok {
		return nil, false
	}
	return bd.desc, true
}

// Function returns the bound Function with the given name when the input was
// one (NewFunc, NewDynamicFunc, or a foreign implementation), or (nil, false).
func (b *Binder) Function(name string) (Function, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd, ok := b.bindings[name]
	if !ok || bd.fn == nil {
		return nil, false
	}
	return bd.fn, true
}

// Request builds the function-calling fragment of an outbound chat request:
// the bound descriptors plus the optional forcing directive. At least one
// function must be bound.
func (b *Binder) Request(opts ...RequestOption) (*Request, error) {
	o := applyRequestOptions(opts)
	tools := b.Descriptors()
	if len(tools) == 0 {
		return nil, &SchemaError{Reason: "no functions bound"}
	}
	req := &Request{Tools: tools}
	switch o.choice {
	case "":
		// provider default
	case choiceFunction:
		if _, ok := b.Descriptor(o.function); !ok {
			return nil, &UnknownFunctionError{Name: o.function}
		}
		req.ToolChoice = map[string]any{
			"type":     "function",
			"function": map[string]any{"name": o.function},
		}
	default:
		req.ToolChoice = o.choice
	}
	return req, nil
}

// Extract converts proposals into invocations using the bound functions:
// unknown names are UnknownFunctionError, arguments are validated against the
// bound schema, and inputs with a Go type produce a constructed typed value
// on Invocation.Value. Output order equals proposal order; duplicates each
// produce their own entry. By default failures are recorded per proposal on
// Invocation.Err; WithStrictExtraction fails the whole batch on the first
// error.
func (b *Binder) Extract(proposals []Proposal, opts ...ExtractOption) ([]Invocation, error) {
	o := applyExtractOptions(opts)
	b.mu.Lock()
	bindings := maps.Clone(b.bindings)
	b.mu.Unlock()

	out := make([]Invocation, 0, len(proposals))
	for _, p := range proposals {
		inv := Invocation{ID: p.ID, Type: p.Name}
		if err := extractOne(&inv, p, bindings, o); err != nil {
			if o.strict {
				return nil, err
			}
			inv.Err = err
		}
		out = append(out, inv)
	}
	return out, nil
}

// ExtractFrom is Extract over a provider reply adapter.
func (b *Binder) ExtractFrom(src ProposalSource, opts ...ExtractOption) ([]Invocation, error) {
	return b.Extract(src.Proposals(), opts...)
}

func extractOne(inv *Invocation, p Proposal, bindings map[string]*binding, o extractOptions) error {
	bd, ok := bindings[p.Name]
	if !ok {
		return &UnknownFunctionError{Name: p.Name}
	}
	args, raw, err := decodeProposalArgs(p, o.repair)
	if err != nil {
		return err
	}
	inv.Args = args
	if bd.decode != nil {
		v, err := bd.decode(raw)
		if err != nil {
			return err
		}
		inv.Value = v
		return nil
	}
	inst, err := decodeInstance(raw)
	if err != nil {
		return &ArgumentDecodeError{Function: p.Name, Err: err}
	}
	if m, ok := inst.(map[string]any); ok {
		if err := checkArguments(p.Name, bd.desc.Parameters, m, bd.allowExtra); err != nil {
			return err
		}
	}
	return validateAgainstSchema(p.Name, bd.compiled, inst)
}
