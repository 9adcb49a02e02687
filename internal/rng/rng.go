// Package rng derives reproducible random streams for a turn.
//
// Every random draw in the engine comes from a stream named by the turn seed
// plus a label path such as ("claims", companyID). Streams with different
// labels are independent, so adding draws to one stage never shifts the
// draws of another, and a company's outcome does not depend on how many
// other companies were processed before it.
package rng

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Stream labels.
const (
	Catastrophe = "catastrophe"
	Phase       = "phase"
	Claims      = "claims"
	Perception  = "perception"
	Returns     = "returns"
	Liquidation = "liquidation"
	Compliance  = "compliance"
)

// Derive hashes seed and labels into a 64-bit stream seed.
func Derive(seed uint64, labels ...string) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	_, _ = h.Write(buf[:])
	for _, l := range labels {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(l)
	}
	return h.Sum64()
}

// New returns a PCG-backed generator for the stream named by labels.
// The returned *rand.Rand also satisfies rand.Source, so it can be handed
// directly to gonum distributions.
func New(seed uint64, labels ...string) *rand.Rand {
	s := Derive(seed, labels...)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// TurnSeed derives the seed of one turn from the semester seed.
func TurnSeed(semester uint64, turn int) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(turn))
	return Derive(semester, "turn", string(buf[:]))
}
