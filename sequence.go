// Prompt sequence generation for quiz rounds.
//
// Both players in a match answer the same prompts in the same order, so the
// sequence is generated once at room creation and stored with the room.
// Shuffle-and-concatenate (rather than sampling with replacement) guarantees
// every pool character shows up at least once per full shuffle block, so no
// character can drought for long even in a 120-prompt sequence.

package main

import (
	"crypto/rand"
	"math/big"
)

const defaultSequenceLength = 120

// randIndex returns a uniform random int in [0, n).
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand reading from the OS should not fail; a zero index
		// keeps the sequence valid if it somehow does.
		return 0
	}
	return int(v.Int64())
}

// shuffled returns a uniform Fisher-Yates permutation of pool.
func shuffled(pool []KanaChar) []KanaChar {
	out := make([]KanaChar, len(pool))
	copy(out, pool)
	for i := len(out) - 1; i > 0; i-- {
		j := randIndex(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// generateSequence produces exactly count prompts for the given charset by
// concatenating full shuffles of its pool and truncating.
func generateSequence(charsetID string, count int) []KanaChar {
	pool := getPool(charsetID)
	if len(pool) == 0 || count <= 0 {
		return []KanaChar{}
	}

	sequence := make([]KanaChar, 0, count+len(pool))
	for len(sequence) < count {
		sequence = append(sequence, shuffled(pool)...)
	}
	return sequence[:count]
}
