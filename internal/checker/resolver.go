package checker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkcheck/internal/utils"
)

// Metadata is what one probe learns about a URL. StatusCode 0 means every
// attempt failed before a response arrived.
type Metadata struct {
	StatusCode    int
	ContentType   string
	ContentLength int64
}

type Resolver struct {
	client     utils.HTTPDoer
	maxRetries int
}

func NewResolver(client utils.HTTPDoer, maxRetries int) *Resolver {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Resolver{client: client, maxRetries: maxRetries}
}

// Resolve probes url with HEAD, falling back to GET for servers that refuse
// HEAD. Only transport errors are retried; any HTTP answer is final.
func (r *Resolver) Resolve(ctx context.Context, url string) Metadata {
	meta := Metadata{ContentLength: -1}
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		got, err := r.probe(ctx, http.MethodHead, url)
		if err == nil && (got.StatusCode == http.StatusMethodNotAllowed || got.StatusCode == http.StatusNotImplemented) {
			got, err = r.probe(ctx, http.MethodGet, url)
		}
		if err == nil {
			return got
		}
		if ctx.Err() != nil {
			return meta
		}
		if attempt == r.maxRetries {
			log.Error().Str("op", "checker/resolver").Str("url", url).Err(err).Msg("cannot get remote file info")
		} else {
			log.Warn().Str("op", "checker/resolver").Str("url", url).Int("attempt", attempt).Err(err).Msg("probe failed, retrying")
		}
	}
	return meta
}

// ResolveAsync runs Resolve on its own goroutine and hands the result to done.
func (r *Resolver) ResolveAsync(ctx context.Context, url string, done func(Metadata)) {
	go func() {
		done(r.Resolve(ctx, url))
	}()
}

func (r *Resolver) probe(ctx context.Context, method, url string) (Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	// the body of a GET probe is never read
	resp.Body.Close()
	log.Debug().Str("op", "checker/resolver").Str("method", method).Str("url", url).Int("status", resp.StatusCode).Msg("probed")
	return Metadata{
		StatusCode:    resp.StatusCode,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}
