package lib

import (
	"net/url"
	"strings"

	"github.com/gravitational/trace"
)

// NormalizeBaseURL turns a backend address into a base URL. https is assumed
// when the scheme is missing; default ports and trailing slashes are dropped.
func NormalizeBaseURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", trace.BadParameter("empty backend address")
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "https://" + addr
	}
	result, err := url.Parse(addr)
	if err != nil {
		return "", trace.Wrap(err)
	}
	if result.Host == "" {
		return "", trace.BadParameter("backend address %q has no host", addr)
	}
	if (result.Scheme == "https" && result.Port() == "443") || (result.Scheme == "http" && result.Port() == "80") {
		// Cut off redundant port
		result.Host = result.Hostname()
	}
	result.Path = strings.TrimRight(result.Path, "/")
	return result.String(), nil
}
