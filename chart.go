// Reference chart for the kana tables.
//
// The lookup tables are kept in strict gojūon order, so the chart rows are
// carved straight out of them: no separate chart data to drift out of sync
// with the quiz pools.

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

type chartSection struct {
	Title string       `json:"title"`
	Rows  [][]KanaChar `json:"rows"`
}

type chartResponse struct {
	Script   string         `json:"script"`
	Sections []chartSection `json:"sections"`
}

// Row lengths of the basic table in gojūon order: five-kana rows, the
// three-kana ya row, then wa/wo and the lone n. Short rows are gapped by the
// client the way printed charts do it.
var chartBasicRowLengths = []int{5, 5, 5, 5, 5, 5, 5, 3, 5, 2, 1}

func carveRows(chars []KanaChar, lengths []int) [][]KanaChar {
	rows := make([][]KanaChar, 0, len(lengths))
	for _, n := range lengths {
		rows = append(rows, chars[:n])
		chars = chars[n:]
	}
	return rows
}

// kanaChart lays the script's tables out as the three classic chart sections.
func kanaChart(script string) chartResponse {
	basic, extended := hiraganaBasic, hiraganaExtended
	if script == charsetKatakana {
		basic, extended = katakanaBasic, katakanaExtended
	}

	// The extended table is voiced rows first (5x5), combos after (11x3).
	voiced := extended[:25]
	combos := extended[25:]

	voicedLengths := []int{5, 5, 5, 5, 5}
	comboLengths := make([]int, len(combos)/3)
	for i := range comboLengths {
		comboLengths[i] = 3
	}

	return chartResponse{
		Script: script,
		Sections: []chartSection{
			{Title: "Basic", Rows: carveRows(basic, chartBasicRowLengths)},
			{Title: "Dakuten / Handakuten", Rows: carveRows(voiced, voicedLengths)},
			{Title: "Combinations", Rows: carveRows(combos, comboLengths)},
		},
	}
}

// chartHandler serves the read-only reference chart for one script.
func chartHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		script := ps.ByName("script")
		if script != charsetHiragana && script != charsetKatakana {
			writeJSON(w, http.StatusNotFound, errorMessage{Type: "error", Message: "Unknown script."})
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)
		writeJSON(w, http.StatusOK, kanaChart(script))
	}
}
