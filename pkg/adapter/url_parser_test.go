package adapter

import "testing"

func TestParseURLAbsolute(t *testing.T) {
	ctxt := &ConnectionCtxt{URL: "https://stream.example.com"}
	u, err := parseURL("https://other.example.com/status", ctxt)
	if err != nil {
		t.Fatalf("parseURL: %v", err)
	}
	if u.Host != "other.example.com" {
		t.Fatalf("expected absolute URL host to be preserved, got %q", u.Host)
	}
}

func TestParseURLRelative(t *testing.T) {
	ctxt := &ConnectionCtxt{URL: "https://stream.example.com/base/"}
	u, err := parseURL("status", ctxt)
	if err != nil {
		t.Fatalf("parseURL: %v", err)
	}
	if u.String() != "https://stream.example.com/base/status" {
		t.Fatalf("unexpected resolved URL: %q", u.String())
	}
}

func TestParseURLRejectsNonHTTPScheme(t *testing.T) {
	ctxt := &ConnectionCtxt{URL: "https://stream.example.com"}
	if _, err := parseURL("ftp://stream.example.com/status", ctxt); err == nil {
		t.Fatalf("expected non-http(s) scheme to be rejected")
	}
}
