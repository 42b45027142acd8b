package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/gainaura/aura/internal/apperr"
)

// Query parameters that identify a share channel rather than the media
// itself. Two links to the same page that differ only in these must collide
// in the dedup index.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"si":      true,
	"spm":     true,
	"ref_src": true,
}

func isTrackingParam(name string) bool {
	return trackingParams[name] || strings.HasPrefix(name, "utm_")
}

// NormalizeURL canonicalizes a media URL for identity purposes: lowercased
// scheme and host, default ports and fragments dropped, tracking parameters
// stripped, remaining query parameters sorted.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.New(apperr.KindInvalidSelection, "empty URL")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalidSelection, "unparseable URL", err)
	}
	if u.Scheme == "" {
		// Bare "youtube.com/watch?v=x" style input.
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInvalidSelection, "unparseable URL", err)
		}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", apperr.New(apperr.KindInvalidSelection, "unsupported URL scheme "+scheme)
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")

	path := strings.TrimSuffix(u.Path, "/")

	query := ""
	if u.RawQuery != "" {
		values := u.Query()
		names := make([]string, 0, len(values))
		for name := range values {
			if isTrackingParam(name) {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		var parts []string
		for _, name := range names {
			for _, v := range values[name] {
				parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(v))
			}
		}
		query = strings.Join(parts, "&")
	}

	normalized := scheme + "://" + host + path
	if query != "" {
		normalized += "?" + query
	}
	return normalized, nil
}

// DedupKey derives the stable identity used to collapse duplicate
// submissions of the same media.
func DedupKey(raw string) (string, error) {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:8]), nil
}
