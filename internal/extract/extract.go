package extract

import (
	"bytes"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

var (
	// anchor target in group 1, anchor body in group 2
	linkRegex     = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']?([^"' ]*)["']?[^>]*>(.*?)</a>`)
	protocolRegex = regexp.MustCompile(`(?i)^[^:]+://`)
	fileRegex     = regexp.MustCompile(`(?i)^.*\.\w{2,4}$`)
)

// NormalizeURL prepends http:// when the input has no scheme.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !protocolRegex.MatchString(raw) {
		return "http://" + raw
	}
	return raw
}

// BaseURL returns the directory of a page URL, always ending in "/".
// "http://a.com/x/page.html" gives "http://a.com/x/" and
// "http://a.com/docs" gives "http://a.com/docs/".
func BaseURL(pageURL string) string {
	if fileRegex.MatchString(pageURL) {
		lastSlash := strings.LastIndex(pageURL, "/")
		if lastSlash == strings.Index(pageURL, "://")+2 {
			return pageURL + "/"
		}
		return pageURL[:lastSlash+1]
	}
	if strings.HasSuffix(pageURL, "/") {
		return pageURL
	}
	return pageURL + "/"
}

// Links scans page bytes for anchor targets and returns the distinct
// absolute http(s) URLs in order of first appearance. contentType is the
// page's Content-Type header and selects the decoder for non UTF-8 pages.
func Links(data []byte, contentType, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		log.Warn().Str("op", "extract").Str("base", baseURL).Err(err).Msg("invalid base URL")
		return nil
	}
	content := decode(data, contentType)

	seen := make(map[string]struct{})
	var links []string
	for _, m := range linkRegex.FindAllStringSubmatch(content, -1) {
		raw := m[1]
		ref, err := url.Parse(raw)
		if err != nil {
			log.Warn().Str("op", "extract").Str("href", raw).Msg("ignoring malformed URL")
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			log.Warn().Str("op", "extract").Str("url", abs.String()).Msg("ignoring non-http URL")
			continue
		}
		link := abs.String()
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	log.Debug().Str("op", "extract").Int("links", len(links)).Msg("links extracted")
	return links
}

func decode(data []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return string(data)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
