package extract

import (
	"reflect"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"example.com":          "http://example.com",
		"  example.com/a ":     "http://example.com/a",
		"http://example.com":   "http://example.com",
		"HTTPS://example.com/": "HTTPS://example.com/",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseURL(t *testing.T) {
	tests := map[string]string{
		"http://a.com/x/page.html":     "http://a.com/x/",
		"http://a.com/index.html":      "http://a.com/",
		"http://a.com":                 "http://a.com/",
		"http://a.com/docs":            "http://a.com/docs/",
		"http://a.com/docs/":           "http://a.com/docs/",
		"http://example.org/path/v1.2": "http://example.org/path/v1.2/",
	}
	for in, want := range tests {
		if got := BaseURL(in); got != want {
			t.Errorf("BaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLinks(t *testing.T) {
	page := `<html><body>
<a href="a.html">A</a>
<A HREF='/b'>B</A>
<a href=c/d.html class="y">c</a>
<a title="t" href="http://a.com/x/a.html">dup</a>
<a href="./a.html">dup again</a>
<a href="mailto:me@a.com">mail</a>
<a href="ftp://files.a.com/f">ftp</a>
<a href="http://[::1">bad</a>
<a
  href="https://other.org/page">multi
line</a>
</body></html>`
	got := Links([]byte(page), "text/html", "http://a.com/x/")
	want := []string{
		"http://a.com/x/a.html",
		"http://a.com/b",
		"http://a.com/x/c/d.html",
		"https://other.org/page",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links = %v\nwant %v", got, want)
	}
}

func TestLinksIdempotentDedup(t *testing.T) {
	page := `<a href="/p">1</a><a href="http://a.com/p">2</a><a href="p">3</a>`
	got := Links([]byte(page), "", "http://a.com/")
	if len(got) != 1 || got[0] != "http://a.com/p" {
		t.Errorf("Links = %v, want [http://a.com/p]", got)
	}
}

func TestLinksNone(t *testing.T) {
	if got := Links([]byte("<p>no anchors here</p>"), "text/html", "http://a.com/"); len(got) != 0 {
		t.Errorf("Links = %v, want none", got)
	}
}

func TestLinksDecodesCharset(t *testing.T) {
	page := []byte("<a href=\"caf\xe9.html\">x</a>")
	got := Links(page, "text/html; charset=iso-8859-1", "http://a.com/")
	want := []string{"http://a.com/caf%C3%A9.html"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links = %v, want %v", got, want)
	}
}
