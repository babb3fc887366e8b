// Package normalize canonicalizes URLs so that semantically equivalent forms
// compare equal. Normalization is pure and never fails loudly: a URL that
// cannot be canonicalized is reported with ok == false.
package normalize

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// TrackingParams are query parameters dropped during normalization
var TrackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign",
	"utm_term", "utm_content", "fbclid",
	"gclid", "ref", "source",
}

// hostVariation rewrites a mobile or www host variant to its canonical form
type hostVariation struct {
	from string
	to   string
}

// hostVariations are applied in order, one pass each. Later entries see the
// output of earlier ones.
var hostVariations = []hostVariation{
	{from: "www.", to: ""},
	{from: ".m.", to: "."},
	{from: "-mobile.", to: "."},
}

var defaultPorts = map[string]string{
	"http":  ":80",
	"https": ":443",
}

// Normalizer canonicalizes URLs
type Normalizer struct {
	removeParams map[string]bool
	logger       *slog.Logger
}

// New creates a normalizer. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	removeParams := make(map[string]bool, len(TrackingParams))
	for _, param := range TrackingParams {
		removeParams[param] = true
	}

	return &Normalizer{
		removeParams: removeParams,
		logger:       logger.With("component", "normalize"),
	}
}

// Normalize returns the canonical form of raw, or ok == false when raw has no
// scheme or host or cannot be parsed at all.
func (n *Normalizer) Normalize(raw string) (canonical string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("url normalization panicked", "url", raw, "panic", r)
			canonical, ok = "", false
		}
	}()

	u, err := url.Parse(raw)
	if err != nil {
		n.logger.Debug("url normalization failed", "url", raw, "error", err)
		return "", false
	}
	if u.Scheme == "" || u.Host == "" {
		n.logger.Debug("url normalization failed", "url", raw, "error", "missing scheme or host")
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	host := n.normalizeHost(scheme, u.Host)

	var userinfo string
	if u.User != nil {
		userinfo = strings.ToLower(u.User.String()) + "@"
	}

	path := strings.ToLower(u.EscapedPath())
	path = strings.TrimRight(path, "/")
	if path == "" {
		path = "/"
	}

	return build(scheme, userinfo+host, path, n.filterQuery(u.RawQuery)), true
}

// GetDomain returns the normalized host of raw: lower-cased, without port and
// with host variations collapsed.
func (n *Normalizer) GetDomain(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		n.logger.Debug("domain extraction failed", "url", raw, "error", err)
		return "", false
	}

	domain := strings.ToLower(u.Hostname())
	if domain == "" {
		return "", false
	}
	return applyVariations(domain), true
}

// CanonicalQuery drops tracking parameters from an already normalized URL and
// sorts the remaining ones. Applying it to Normalize output is a no-op.
func (n *Normalizer) CanonicalQuery(normalized string) (string, error) {
	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to parse normalized url: %w", err)
	}

	var userinfo string
	if u.User != nil {
		userinfo = u.User.String() + "@"
	}

	return build(u.Scheme, userinfo+u.Host, u.EscapedPath(), n.filterQuery(u.RawQuery)), nil
}

// normalizeHost lower-cases host, strips the scheme's default port and
// collapses host variations
func (n *Normalizer) normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	if port, ok := defaultPorts[scheme]; ok {
		host = strings.TrimSuffix(host, port)
	}
	return applyVariations(host)
}

// filterQuery removes tracking parameters and blank values and encodes the
// rest sorted by name
func (n *Normalizer) filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	values := parseQuery(rawQuery)
	for name, vals := range values {
		if n.removeParams[name] {
			delete(values, name)
			continue
		}

		kept := vals[:0]
		for _, v := range vals {
			if v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(values, name)
			continue
		}
		values[name] = kept
	}

	return values.Encode()
}

// parseQuery splits rawQuery on '&' only, so ';' stays part of a value. A name
// or value with a bad escape is kept as written.
func parseQuery(rawQuery string) url.Values {
	values := make(url.Values)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name, value = unescapeQuery(name), unescapeQuery(value)
		values[name] = append(values[name], value)
	}
	return values
}

func unescapeQuery(s string) string {
	unescaped, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return unescaped
}

// applyVariations repeats each variation until the host stops changing, so
// overlapping matches such as "a.m.m.example.com" collapse in one call.
func applyVariations(host string) string {
	for _, variation := range hostVariations {
		for {
			next := strings.ReplaceAll(host, variation.from, variation.to)
			if next == host {
				break
			}
			host = next
		}
	}
	return host
}

func build(scheme, host, path, query string) string {
	var b strings.Builder
	b.Grow(len(scheme) + len(host) + len(path) + len(query) + 4)
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}
