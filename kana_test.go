package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPoolSizes(t *testing.T) {
	assert.Len(t, getPool("hiragana-basic"), 46)
	assert.Len(t, getPool("katakana-basic"), 46)
	assert.Len(t, getPool("both-basic"), 92)
	assert.Len(t, getPool("hiragana"), 104)
	assert.Len(t, getPool("katakana"), 104)
	assert.Len(t, getPool("both"), 208)
}

func TestGetPoolDeduplicates(t *testing.T) {
	for _, charset := range []string{"hiragana", "katakana", "both", "both-basic"} {
		seen := make(map[string]bool)
		for _, c := range getPool(charset) {
			require.False(t, seen[c.Kana], "charset %s repeats %q", charset, c.Kana)
			seen[c.Kana] = true
		}
	}
}

func TestGetPoolBasicExcludesVoicedAndCombos(t *testing.T) {
	for _, c := range getPool("hiragana-basic") {
		assert.NotEqual(t, "が", c.Kana)
		assert.NotEqual(t, "きゃ", c.Kana)
	}
	for _, c := range getPool("katakana-basic") {
		assert.NotEqual(t, "ガ", c.Kana)
		assert.NotEqual(t, "キャ", c.Kana)
	}
}

func TestGetPoolUnknownFallsBack(t *testing.T) {
	assert.Equal(t, getPool("hiragana"), getPool("klingon"))
}

func TestValidCharset(t *testing.T) {
	for _, charset := range []string{"hiragana", "katakana", "both", "hiragana-basic", "katakana-basic", "both-basic"} {
		assert.True(t, validCharset(charset), charset)
	}
	assert.False(t, validCharset(""))
	assert.False(t, validCharset("romaji"))
	assert.False(t, validCharset("HIRAGANA"))
}

func TestCharsetLabel(t *testing.T) {
	assert.Equal(t, "Hiragana", charsetLabel("hiragana"))
	assert.Equal(t, "Katakana (Basic)", charsetLabel("katakana-basic"))
	assert.Equal(t, "Hiragana & Katakana", charsetLabel("both"))
}
