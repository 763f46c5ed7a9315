package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sectionTotal(s chartSection) int {
	total := 0
	for _, row := range s.Rows {
		total += len(row)
	}
	return total
}

func TestKanaChartCoversFullTables(t *testing.T) {
	for _, script := range []string{"hiragana", "katakana"} {
		chart := kanaChart(script)
		require.Len(t, chart.Sections, 3, script)

		assert.Equal(t, "Basic", chart.Sections[0].Title)
		assert.Equal(t, 46, sectionTotal(chart.Sections[0]))
		assert.Equal(t, 25, sectionTotal(chart.Sections[1]))
		assert.Equal(t, 33, sectionTotal(chart.Sections[2]))

		// Every charted character is quizzable.
		pool := make(map[string]bool)
		for _, c := range getPool(script) {
			pool[c.Kana] = true
		}
		for _, section := range chart.Sections {
			for _, row := range section.Rows {
				for _, c := range row {
					assert.True(t, pool[c.Kana], "%s %q not in pool", script, c.Kana)
				}
			}
		}
	}
}

func TestKanaChartRowShapes(t *testing.T) {
	chart := kanaChart("hiragana")
	basic := chart.Sections[0]

	// Gojūon layout: the ya row has three kana, wa/wo two, n alone.
	require.Len(t, basic.Rows, 11)
	assert.Len(t, basic.Rows[7], 3)
	assert.Len(t, basic.Rows[9], 2)
	assert.Len(t, basic.Rows[10], 1)

	assert.Equal(t, "あ", basic.Rows[0][0].Kana)
	assert.Equal(t, "ん", basic.Rows[10][0].Kana)
	assert.Equal(t, "が", chart.Sections[1].Rows[0][0].Kana)
	assert.Equal(t, "きゃ", chart.Sections[2].Rows[0][0].Kana)
}

func TestChartHandler(t *testing.T) {
	cfg := &Config{}
	handler := chartHandler(cfg)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/chart/katakana", nil)
	handler(w, r, httprouter.Params{{Key: "script", Value: "katakana"}})

	require.Equal(t, http.StatusOK, w.Code)
	var chart chartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chart))
	assert.Equal(t, "katakana", chart.Script)
	assert.Equal(t, "ア", chart.Sections[0].Rows[0][0].Kana)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/chart/romaji", nil)
	handler(w, r, httprouter.Params{{Key: "script", Value: "romaji"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
