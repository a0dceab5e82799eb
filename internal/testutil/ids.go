package testutil

// FixedIDGenerator returns the same id every time.
//
// It stands in for store.UUIDv7Generator so recordings created in tests
// have predictable ids.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id. If id is empty, Generate
// returns "test-recording".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-recording"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
