package utils

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/idna"
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// Tracking parameters are stripped so the same link in different campaign
// wrappers normalizes to one value.
var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "fbclid", "gclid", "ref"}

func ExtractURLs(content string) []string {
	return urlPattern.FindAllString(content, -1)
}

// NormalizeURL lowercases and punycodes the host, strips fragments, user info
// and tracking parameters, and returns the normalized URL plus its host.
func NormalizeURL(raw string) (string, string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}

	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}

	parsed.Host = host
	parsed.Fragment = ""
	parsed.User = nil

	query := parsed.Query()
	for _, key := range trackingParams {
		query.Del(key)
	}
	parsed.RawQuery = sortedEncode(query)

	return parsed.String(), host, nil
}

func sortedEncode(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clean := url.Values{}
	for _, key := range keys {
		clean[key] = values[key]
	}
	return clean.Encode()
}

// DomainMatch checks a host against the guild's allow and block lists.
func DomainMatch(domain string, allowlist, blocklist map[string]struct{}) (allowed bool, blocked bool) {
	domain = strings.ToLower(domain)
	if _, ok := allowlist[domain]; ok {
		return true, false
	}
	if _, ok := blocklist[domain]; ok {
		return false, true
	}
	return false, false
}
