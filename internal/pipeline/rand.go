package pipeline

import "math/rand/v2"

// pseudoRandomUint32 picks an index for RouteRandom dispatch. Node
// selection doesn't need a cryptographic or third-party source, so this
// stays on math/rand/v2.
func pseudoRandomUint32() uint32 {
	return rand.Uint32()
}
