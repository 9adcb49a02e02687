package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Reproducible(t *testing.T) {
	a := New(42, Claims, "acme")
	b := New(42, Claims, "acme")
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestNew_LabelsSeparateStreams(t *testing.T) {
	seeds := map[uint64]string{}
	for _, labels := range [][]string{
		{Claims, "acme"},
		{Claims, "globex"},
		{Returns, "acme"},
		{Perception, "acme"},
		{"claimsacme"},
		{"claims", "", "acme"},
	} {
		s := Derive(7, labels...)
		_, dup := seeds[s]
		assert.False(t, dup, "labels %v collide", labels)
		seeds[s] = labels[0]
	}
}

func TestTurnSeed_DiffersByTurn(t *testing.T) {
	assert.NotEqual(t, TurnSeed(1, 1), TurnSeed(1, 2))
	assert.NotEqual(t, TurnSeed(1, 1), TurnSeed(2, 1))
	assert.Equal(t, TurnSeed(3, 9), TurnSeed(3, 9))
}
