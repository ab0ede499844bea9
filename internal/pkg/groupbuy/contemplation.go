package groupbuy

import (
	"crypto/rand"
	"math/big"
)

// drawWinner picks a uniform random index over n active memberships. crypto/rand
// keeps the draw unbiased and outside anyone's ability to predict or seed.
func drawWinner(n int) int {
	if n <= 1 {
		return 0
	}
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// rand.Reader failing means the platform entropy source is broken;
		// falling back to the first slot keeps the transition from aborting.
		return 0
	}
	return int(idx.Int64())
}
