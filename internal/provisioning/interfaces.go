package provisioning

// Phase is one stage of the pipeline.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the phase against the shared context.
	Provision(ctx *Context) error
}

// Logger is the minimal logging surface phases use.
type Logger interface {
	Printf(format string, v ...interface{})
}
