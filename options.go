package funcall

// options hold optional normalization settings.
type options struct {
	strict         bool
	name           string
	description    string
	extraArguments bool
}

// Option configures normalization (e.g. WithStrict, WithName).
type Option func(*options)

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrict sets strict mode for the generated schema: additionalProperties:
// false for all objects, and all properties become required. Use for OpenAI
// Structured Outputs compatibility.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithName overrides the descriptor name derived from the input (the struct
// type name, or a wrapper's own name). Required for anonymous structs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithDescription sets the descriptor description for inputs that do not
// carry their own (bare structs without a Describer implementation).
func WithDescription(description string) Option {
	return func(o *options) {
		o.description = description
	}
}

// WithExtraArguments accepts undeclared arguments in incoming payloads
// instead of rejecting them with a ValidationError.
func WithExtraArguments() Option {
	return func(o *options) {
		o.extraArguments = true
	}
}

// Forcing directive values in the common OpenAI-compatible wire vocabulary.
const (
	choiceAuto     = "auto"
	choiceNone     = "none"
	choiceRequired = "required"
	choiceFunction = "function"
)

// requestOptions hold the forcing directive for Binder.Request.
type requestOptions struct {
	choice   string
	function string
}

// RequestOption configures Binder.Request (e.g. WithChoiceAuto).
type RequestOption func(*requestOptions)

func applyRequestOptions(opts []RequestOption) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChoiceAuto lets the model decide whether to invoke a bound function.
func WithChoiceAuto() RequestOption {
	return func(o *requestOptions) {
		o.choice = choiceAuto
	}
}

// WithChoiceNone prevents the model from invoking any bound function.
func WithChoiceNone() RequestOption {
	return func(o *requestOptions) {
		o.choice = choiceNone
	}
}

// WithChoiceAny forces the model to invoke at least one bound function.
func WithChoiceAny() RequestOption {
	return func(o *requestOptions) {
		o.choice = choiceRequired
	}
}

// WithChoiceFunction forces the model to invoke exactly the named function.
// Request fails with UnknownFunctionError if the name is not bound.
func WithChoiceFunction(name string) RequestOption {
	return func(o *requestOptions) {
		o.choice = choiceFunction
		o.function = name
	}
}

// extractOptions hold extraction settings.
type extractOptions struct {
	strict bool
	repair bool
}

// ExtractOption configures extraction (e.g. WithStrictExtraction, WithRepair).
type ExtractOption func(*extractOptions)

func applyExtractOptions(opts []ExtractOption) extractOptions {
	var o extractOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithStrictExtraction makes extraction all-or-nothing: the first failing
// proposal fails the whole batch instead of being recorded on Invocation.Err.
func WithStrictExtraction() ExtractOption {
	return func(o *extractOptions) {
		o.strict = true
	}
}

// WithRepair retries malformed argument JSON through jsonrepair before
// reporting an ArgumentDecodeError. Models occasionally emit truncated or
// single-quoted JSON; repair recovers most of it.
func WithRepair() ExtractOption {
	return func(o *extractOptions) {
		o.repair = true
	}
}
