package rule

// Factory parses and re-serializes rule documents. It has no state; it
// exists as a named seam so callers (the rule store, the CLI's
// validate-rule command) hold a collaborator value rather than calling
// bare functions, matching the teacher's constructor-returns-a-collaborator
// style.
type Factory struct{}

// NewFactory returns a ready-to-use Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Parse decodes and validates a rule document.
func (f *Factory) Parse(data []byte) (*Rule, error) {
	return Parse(data)
}

// Serialize renders a rule back to its canonical wire format.
func (f *Factory) Serialize(r *Rule) ([]byte, error) {
	return Serialize(r)
}
