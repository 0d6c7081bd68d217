package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleIndex(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	HandleIndex()(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{`id="penColor"`, `id="lineWidth"`, `id="bgColor"`, `width="800"`, `height="300"`, "Save &amp; Download", "Retrieve"} {
		if !strings.Contains(body, want) {
			t.Errorf("index page is missing %s", want)
		}
	}
}
