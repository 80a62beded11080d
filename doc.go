// Package funcall builds provider-agnostic function-calling descriptors for
// chat-completion APIs and extracts structured, validated values from the
// tool-call proposals models return.
//
// # Overview
//
// Chat models invoke functions by name with JSON arguments. This package
// covers both directions of that exchange. Outbound, it normalizes Go
// functions, argument structs, and tool wrappers into the JSON Schema
// descriptor shape providers expect. Inbound, it turns the (name, raw JSON)
// proposals a model returns back into typed Go values: decode → validate
// (against the same schema shown to the model) → construct.
//
// Pipeline: Go function or struct → NewFunc / Normalize (reflection +
// schema) → Binder → Request (tools + tool choice) → provider reply →
// Extract → Invocation.
//
// # Key concepts
//
//   - Single Source of Truth: one set of struct tags drives both the schema
//     sent to the model and the validation of incoming arguments.
//   - Partial Success: extraction collects per-proposal errors; one malformed
//     proposal does not discard the rest unless WithStrictExtraction is set.
//   - Self-Correction: ValidationError names the offending field and the
//     expected vs actual type so the message can go back to the model.
//
// See Descriptor, Proposal, Invocation for the core types, and NewFunc /
// NewBinder for setup.
//
// # Example
//
//	type Args struct {
//		A int `json:"a" description:"First integer"`
//		B int `json:"b" description:"Second integer"`
//	}
//	fn, err := funcall.NewFunc("multiply", "Multiply two integers together.",
//	    func(_ context.Context, a Args) (int, error) { return a.A * a.B, nil })
//	if err != nil { ... }
//	binder := funcall.NewBinder()
//	if err := binder.Bind(fn); err != nil { ... }
//	req, err := binder.Request(funcall.WithChoiceAuto())
//	// attach req.Tools and req.ToolChoice to the outbound chat request,
//	// then hand the reply's proposals back:
//	invs, err := binder.Extract([]funcall.Proposal{
//	    {ID: "1", Name: "multiply", Args: []byte(`{"a":3,"b":12}`)},
//	})
package funcall
