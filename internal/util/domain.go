package util

import "strings"

// UnknownDomain is returned when a From header holds no address.
const UnknownDomain = "unknown"

// ExtractDomain maps a raw From header value to a lowercased registrable
// domain using a two-label heuristic:
//   - "Jane <jane@Mail.Example.COM>" -> "example.com"
//   - "jane@example.com"             -> "example.com"
//   - "no address here"              -> "unknown"
//
// The host is whatever follows the last '@' up to the next '>' (or the end
// of the value). Multi-part public suffixes such as co.uk are not special
// cased, so "a@mail.example.co.uk" yields "co.uk".
func ExtractDomain(header string) string {
	at := strings.LastIndexByte(header, '@')
	if at < 0 {
		return UnknownDomain
	}
	host := header[at+1:]
	if end := strings.IndexByte(host, '>'); end >= 0 {
		host = host[:end]
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return UnknownDomain
	}

	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return host
}
