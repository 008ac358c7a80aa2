package cache

import (
	"testing"

	"go.uber.org/goleak"
)

// The cache spawns background store goroutines; every test path must
// drain them via Flush.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
