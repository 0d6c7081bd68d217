// Package ui serves the browser page for drawing on a pad.
package ui

import (
	_ "embed"
	"net/http"

	"github.com/sirupsen/logrus"
)

//go:embed index.html
var indexHTML []byte

func HandleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(indexHTML); err != nil {
			logrus.WithField("error", err).Error("Failed to write index page")
		}
	}
}
