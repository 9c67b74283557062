// Package resolver defines the external name-resolution collaborator: a
// service that maps a free-text designation to the alternate identifiers
// it is known by elsewhere. The store treats it as optional: when it is
// down, searches degrade to local names.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ohler55/ojg/oj"
)

// Resolver returns the alternate identifiers a name is known by.
type Resolver interface {
	Resolve(ctx context.Context, name string) ([]string, error)
}

// Func adapts a plain function to Resolver.
type Func func(ctx context.Context, name string) ([]string, error)

func (f Func) Resolve(ctx context.Context, name string) ([]string, error) {
	return f(ctx, name)
}

// HTTPResolver queries a Sesame-style JSON name service:
// GET {base}?name={query} returning {"aliases": ["...", ...]}.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTP returns an HTTPResolver with its own timeout-bounded client,
// so a hung name service can never stall a search past the timeout.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	u := r.BaseURL + "?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build resolver request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }() // safe to ignore

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve %q: service returned %s", name, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read resolver response: %w", err)
	}

	parsed, err := oj.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse resolver response: %w", err)
	}
	top, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("resolver response is %T, want object", parsed)
	}
	raw, _ := top["aliases"].([]any)

	aliases := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			aliases = append(aliases, s)
		}
	}
	return aliases, nil
}
