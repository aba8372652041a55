package testutil

// FixedSessionGenerator issues the same session token every time.
//
// engine.FixedGenerator hands out a list of tokens in order and panics when
// they run out. This one never runs out, which suits tests that start an
// unknown number of editors but compare recorded history byte for byte.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a generator for token. An empty token
// becomes "test-session".
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = "test-session"
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed token.
//
// Implements engine.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
