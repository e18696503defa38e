package http

import (
	"net/http"
	"testing"
)

func Test_NegotiateContentType(t *testing.T) {
	// For no accept header, you get your first choice
	want := "application/json"
	got := negotiateContentType(&http.Request{}, []string{want, "text/plain"})
	if got != want {
		t.Errorf("First choice: Expected %q, got %q", want, got)
	}

	// If there's accept headers but none match, get ""
	h := http.Header{}
	h.Add("Accept", "text/html;q=1.0,image/png;q=0.9")
	h.Add("Accept", "application/xml")
	got = negotiateContentType(&http.Request{Header: h}, []string{want})
	if got != "" {
		t.Errorf("No matching: expected empty string, got %q", got)
	}

	// Equal quality: the first preference.
	h = http.Header{}
	h.Add("Accept", "text/plain,application/json,text/html")
	got = negotiateContentType(&http.Request{Header: h}, []string{want, "text/plain"})
	if got != want {
		t.Errorf("Equal quality: expected %q, got %q", want, got)
	}

	// Quality beats preference.
	h = http.Header{}
	h.Add("Accept", "application/json;q=0.5,text/plain;q=1.0")
	got = negotiateContentType(&http.Request{Header: h}, []string{"application/json", "text/plain"})
	if got != "text/plain" {
		t.Errorf("Quality beats preference: expected %q, got %q", "text/plain", got)
	}
}
