package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSequenceExactLength(t *testing.T) {
	for _, charset := range []string{"hiragana", "katakana", "both", "hiragana-basic", "katakana-basic", "both-basic"} {
		for _, count := range []int{1, 10, 46, 120, 500} {
			got := generateSequence(charset, count)
			assert.Len(t, got, count, "charset %s count %d", charset, count)
		}
	}
}

func TestGenerateSequenceMembership(t *testing.T) {
	pool := getPool("katakana-basic")
	romaji := make(map[string]bool, len(pool))
	kana := make(map[string]bool, len(pool))
	for _, c := range pool {
		romaji[c.Romaji] = true
		kana[c.Kana] = true
	}

	for _, c := range generateSequence("katakana-basic", 200) {
		assert.True(t, kana[c.Kana], "kana %q not in pool", c.Kana)
		assert.True(t, romaji[c.Romaji], "romaji %q not in pool", c.Romaji)
	}
}

func TestGenerateSequenceDroughtBound(t *testing.T) {
	// Shuffle-and-concatenate guarantees each pool character appears at
	// least floor(count/poolSize) times.
	pool := getPool("hiragana-basic")
	count := 120
	want := count / len(pool)
	require.Positive(t, want)

	seen := make(map[string]int)
	for _, c := range generateSequence("hiragana-basic", count) {
		seen[c.Kana]++
	}

	for _, c := range pool {
		assert.GreaterOrEqual(t, seen[c.Kana], want, "kana %q droughted", c.Kana)
	}
}

func TestGenerateSequencePoolSmallerThanCount(t *testing.T) {
	pool := getPool("hiragana-basic")
	got := generateSequence("hiragana-basic", 3*len(pool)+7)
	require.Len(t, got, 3*len(pool)+7)

	// The first full block is a permutation of the pool.
	block := make(map[string]int)
	for _, c := range got[:len(pool)] {
		block[c.Kana]++
	}
	for _, c := range pool {
		assert.Equal(t, 1, block[c.Kana])
	}
}

func TestGenerateSequenceDegenerateCounts(t *testing.T) {
	assert.Empty(t, generateSequence("hiragana", 0))
	assert.Empty(t, generateSequence("hiragana", -5))
}
