/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
)

//go:embed kana/index.html
var indexHTML []byte

//go:embed kana/app.css
var kanaboxCSS []byte

//go:embed kana/app.js
var kanaboxJS []byte

func staticHeaders(cfg *Config, w http.ResponseWriter, contentType string, length int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Length", strconv.Itoa(length))
	securityHeaders(cfg, w)
}

// serveAppPage serves the single-page client; every game route renders the
// same document and the script decides which screen to show.
func serveAppPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(indexHTML)
	}
}

func serveAppCSS(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		staticHeaders(cfg, w, "text/css; charset=utf-8", len(kanaboxCSS))
		_, _ = w.Write(kanaboxCSS)
	}
}

func serveAppJS(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		staticHeaders(cfg, w, "text/javascript; charset=utf-8", len(kanaboxJS))
		_, _ = w.Write(kanaboxJS)
	}
}
