// SPDX-License-Identifier: MPL-2.0

// Package warurl parses deployment URLs of the form
//
//	war:<source-url>?<key>=<value>&...
//
// into the URL of the archive to install and its installation options.
package warurl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wabkit/wabkit/pkg/wab"
)

// Scheme is the deployment URL scheme.
const Scheme = "war"

// ErrMalformedURL is the sentinel error wrapped by MalformedURLError.
var ErrMalformedURL = errors.New("malformed deployment URL")

type (
	// URL is a parsed deployment URL.
	URL struct {
		// Source is the URL of the web archive, without the option query.
		Source string
		// Options holds the installation options in query order.
		Options wab.InstallationOptions
	}

	// MalformedURLError reports a deployment URL that cannot be parsed.
	// It wraps ErrMalformedURL for errors.Is() compatibility.
	MalformedURLError struct {
		URL    string
		Reason string
		Err    error
	}
)

// Error implements the error interface for MalformedURLError.
func (e *MalformedURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed deployment URL %q: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed deployment URL %q: %s", e.URL, e.Reason)
}

// Unwrap returns ErrMalformedURL and the underlying cause, if any.
func (e *MalformedURLError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedURL, e.Err}
	}
	return []error{ErrMalformedURL}
}

// Parse splits raw into source URL and installation options. Keys and
// values are URL-decoded; a key without "=" has an empty value.
func Parse(raw string) (URL, error) {
	rest, ok := cutScheme(raw)
	if !ok {
		return URL{}, &MalformedURLError{URL: raw, Reason: "expected scheme " + Scheme + ":"}
	}

	source, query, _ := strings.Cut(rest, "?")
	if strings.TrimSpace(source) == "" {
		return URL{}, &MalformedURLError{URL: raw, Reason: "missing source URL"}
	}
	if _, err := url.Parse(source); err != nil {
		return URL{}, &MalformedURLError{URL: raw, Reason: "invalid source URL", Err: err}
	}

	var opts []wab.Option
	for pair := range strings.SplitSeq(query, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return URL{}, &MalformedURLError{URL: raw, Reason: "invalid option key", Err: err}
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return URL{}, &MalformedURLError{URL: raw, Reason: "invalid value for " + key, Err: err}
		}
		opts = append(opts, wab.Option{Key: key, Value: value})
	}

	options, err := wab.NewInstallationOptions(opts...)
	if err != nil {
		return URL{}, &MalformedURLError{URL: raw, Reason: "invalid options", Err: err}
	}
	return URL{Source: source, Options: options}, nil
}

// String formats u back into a deployment URL.
func (u URL) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteByte(':')
	b.WriteString(u.Source)
	for i, o := range u.Options.Options() {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(o.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(o.Value))
	}
	return b.String()
}

func cutScheme(raw string) (string, bool) {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || !strings.EqualFold(scheme, Scheme) {
		return "", false
	}
	return rest, true
}
