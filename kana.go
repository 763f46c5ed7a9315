// Kana lookup tables and the character pool provider.
//
// Pools are ordered and deduplicated by kana, so a charset ID always maps to
// the same sequence of pairs. The "-basic" variants cover only the 46 gojūon
// characters; the full variants add dakuten/handakuten rows and yōon
// combinations.

package main

import (
	"strings"

	"github.com/samber/lo"
)

// KanaChar pairs a kana character with its Hepburn romanization.
type KanaChar struct {
	Kana   string `json:"kana"`
	Romaji string `json:"romaji"`
}

const (
	charsetHiragana = "hiragana"
	charsetKatakana = "katakana"
	charsetBoth     = "both"

	basicSuffix = "-basic"
)

var hiraganaBasic = []KanaChar{
	{"あ", "a"}, {"い", "i"}, {"う", "u"}, {"え", "e"}, {"お", "o"},
	{"か", "ka"}, {"き", "ki"}, {"く", "ku"}, {"け", "ke"}, {"こ", "ko"},
	{"さ", "sa"}, {"し", "shi"}, {"す", "su"}, {"せ", "se"}, {"そ", "so"},
	{"た", "ta"}, {"ち", "chi"}, {"つ", "tsu"}, {"て", "te"}, {"と", "to"},
	{"な", "na"}, {"に", "ni"}, {"ぬ", "nu"}, {"ね", "ne"}, {"の", "no"},
	{"は", "ha"}, {"ひ", "hi"}, {"ふ", "fu"}, {"へ", "he"}, {"ほ", "ho"},
	{"ま", "ma"}, {"み", "mi"}, {"む", "mu"}, {"め", "me"}, {"も", "mo"},
	{"や", "ya"}, {"ゆ", "yu"}, {"よ", "yo"},
	{"ら", "ra"}, {"り", "ri"}, {"る", "ru"}, {"れ", "re"}, {"ろ", "ro"},
	{"わ", "wa"}, {"を", "wo"}, {"ん", "n"},
}

var hiraganaExtended = []KanaChar{
	{"が", "ga"}, {"ぎ", "gi"}, {"ぐ", "gu"}, {"げ", "ge"}, {"ご", "go"},
	{"ざ", "za"}, {"じ", "ji"}, {"ず", "zu"}, {"ぜ", "ze"}, {"ぞ", "zo"},
	{"だ", "da"}, {"ぢ", "ji"}, {"づ", "zu"}, {"で", "de"}, {"ど", "do"},
	{"ば", "ba"}, {"び", "bi"}, {"ぶ", "bu"}, {"べ", "be"}, {"ぼ", "bo"},
	{"ぱ", "pa"}, {"ぴ", "pi"}, {"ぷ", "pu"}, {"ぺ", "pe"}, {"ぽ", "po"},
	{"きゃ", "kya"}, {"きゅ", "kyu"}, {"きょ", "kyo"},
	{"しゃ", "sha"}, {"しゅ", "shu"}, {"しょ", "sho"},
	{"ちゃ", "cha"}, {"ちゅ", "chu"}, {"ちょ", "cho"},
	{"にゃ", "nya"}, {"にゅ", "nyu"}, {"にょ", "nyo"},
	{"ひゃ", "hya"}, {"ひゅ", "hyu"}, {"ひょ", "hyo"},
	{"みゃ", "mya"}, {"みゅ", "myu"}, {"みょ", "myo"},
	{"りゃ", "rya"}, {"りゅ", "ryu"}, {"りょ", "ryo"},
	{"ぎゃ", "gya"}, {"ぎゅ", "gyu"}, {"ぎょ", "gyo"},
	{"じゃ", "ja"}, {"じゅ", "ju"}, {"じょ", "jo"},
	{"びゃ", "bya"}, {"びゅ", "byu"}, {"びょ", "byo"},
	{"ぴゃ", "pya"}, {"ぴゅ", "pyu"}, {"ぴょ", "pyo"},
}

var katakanaBasic = []KanaChar{
	{"ア", "a"}, {"イ", "i"}, {"ウ", "u"}, {"エ", "e"}, {"オ", "o"},
	{"カ", "ka"}, {"キ", "ki"}, {"ク", "ku"}, {"ケ", "ke"}, {"コ", "ko"},
	{"サ", "sa"}, {"シ", "shi"}, {"ス", "su"}, {"セ", "se"}, {"ソ", "so"},
	{"タ", "ta"}, {"チ", "chi"}, {"ツ", "tsu"}, {"テ", "te"}, {"ト", "to"},
	{"ナ", "na"}, {"ニ", "ni"}, {"ヌ", "nu"}, {"ネ", "ne"}, {"ノ", "no"},
	{"ハ", "ha"}, {"ヒ", "hi"}, {"フ", "fu"}, {"ヘ", "he"}, {"ホ", "ho"},
	{"マ", "ma"}, {"ミ", "mi"}, {"ム", "mu"}, {"メ", "me"}, {"モ", "mo"},
	{"ヤ", "ya"}, {"ユ", "yu"}, {"ヨ", "yo"},
	{"ラ", "ra"}, {"リ", "ri"}, {"ル", "ru"}, {"レ", "re"}, {"ロ", "ro"},
	{"ワ", "wa"}, {"ヲ", "wo"}, {"ン", "n"},
}

var katakanaExtended = []KanaChar{
	{"ガ", "ga"}, {"ギ", "gi"}, {"グ", "gu"}, {"ゲ", "ge"}, {"ゴ", "go"},
	{"ザ", "za"}, {"ジ", "ji"}, {"ズ", "zu"}, {"ゼ", "ze"}, {"ゾ", "zo"},
	{"ダ", "da"}, {"ヂ", "ji"}, {"ヅ", "zu"}, {"デ", "de"}, {"ド", "do"},
	{"バ", "ba"}, {"ビ", "bi"}, {"ブ", "bu"}, {"ベ", "be"}, {"ボ", "bo"},
	{"パ", "pa"}, {"ピ", "pi"}, {"プ", "pu"}, {"ペ", "pe"}, {"ポ", "po"},
	{"キャ", "kya"}, {"キュ", "kyu"}, {"キョ", "kyo"},
	{"シャ", "sha"}, {"シュ", "shu"}, {"ショ", "sho"},
	{"チャ", "cha"}, {"チュ", "chu"}, {"チョ", "cho"},
	{"ニャ", "nya"}, {"ニュ", "nyu"}, {"ニョ", "nyo"},
	{"ヒャ", "hya"}, {"ヒュ", "hyu"}, {"ヒョ", "hyo"},
	{"ミャ", "mya"}, {"ミュ", "myu"}, {"ミョ", "myo"},
	{"リャ", "rya"}, {"リュ", "ryu"}, {"リョ", "ryo"},
	{"ギャ", "gya"}, {"ギュ", "gyu"}, {"ギョ", "gyo"},
	{"ジャ", "ja"}, {"ジュ", "ju"}, {"ジョ", "jo"},
	{"ビャ", "bya"}, {"ビュ", "byu"}, {"ビョ", "byo"},
	{"ピャ", "pya"}, {"ピュ", "pyu"}, {"ピョ", "pyo"},
}

var hiraganaAll = append(append([]KanaChar{}, hiraganaBasic...), hiraganaExtended...)
var katakanaAll = append(append([]KanaChar{}, katakanaBasic...), katakanaExtended...)

// getPool maps a charset ID to its ordered character pool. Unknown IDs fall
// back to the full hiragana pool, matching the lobby's default selection.
func getPool(charsetID string) []KanaChar {
	basic := strings.HasSuffix(charsetID, basicSuffix)
	base := strings.TrimSuffix(charsetID, basicSuffix)

	var pool []KanaChar
	switch base {
	case charsetKatakana:
		if basic {
			pool = katakanaBasic
		} else {
			pool = katakanaAll
		}
	case charsetBoth:
		if basic {
			pool = append(append([]KanaChar{}, hiraganaBasic...), katakanaBasic...)
		} else {
			pool = append(append([]KanaChar{}, hiraganaAll...), katakanaAll...)
		}
	default:
		if basic {
			pool = hiraganaBasic
		} else {
			pool = hiraganaAll
		}
	}

	return lo.UniqBy(pool, func(c KanaChar) string { return c.Kana })
}

// validCharset reports whether the lobby may create a room with this ID.
func validCharset(charsetID string) bool {
	switch strings.TrimSuffix(charsetID, basicSuffix) {
	case charsetHiragana, charsetKatakana, charsetBoth:
		return true
	}
	return false
}

// charsetLabel renders a charset ID as a human-readable name.
func charsetLabel(charsetID string) string {
	basic := strings.HasSuffix(charsetID, basicSuffix)

	var name string
	switch strings.TrimSuffix(charsetID, basicSuffix) {
	case charsetKatakana:
		name = "Katakana"
	case charsetBoth:
		name = "Hiragana & Katakana"
	default:
		name = "Hiragana"
	}

	if basic {
		return name + " (Basic)"
	}
	return name
}
