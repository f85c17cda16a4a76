package cache

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go-offline-proxy/internal/interfaces"
)

// Ensure KeyBuilderImpl implements interfaces.KeyBuilder
var _ interfaces.KeyBuilder = (*KeyBuilderImpl)(nil)

// partitionNamePattern matches the partitions owned by the interception agent
var partitionNamePattern = regexp.MustCompile(`^(static|dynamic|api|images)-(.+)$`)

// KeyBuilderImpl implements the KeyBuilder interface
type KeyBuilderImpl struct{}

// NewKeyBuilder creates a new KeyBuilder instance
func NewKeyBuilder() *KeyBuilderImpl {
	return &KeyBuilderImpl{}
}

// RequestKey returns "METHOD /path?query". Absolute URLs are reduced to their
// origin-relative form and fragments are dropped.
func (kb *KeyBuilderImpl) RequestKey(method, rawURL string) string {
	if method == "" {
		method = http.MethodGet
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(method), normalizeURL(rawURL))
}

// ParseRequestKey splits a request identity back into method and URL
func (kb *KeyBuilderImpl) ParseRequestKey(key string) (string, string, bool) {
	method, target, ok := strings.Cut(key, " ")
	if !ok || method == "" || target == "" {
		return "", "", false
	}
	return method, target, true
}

// PartitionName returns {prefix}-{version}
func (kb *KeyBuilderImpl) PartitionName(prefix, version string) string {
	return prefix + "-" + version
}

// ParsePartitionName returns prefix and version when name follows the agent naming contract
func (kb *KeyBuilderImpl) ParsePartitionName(name string) (string, string, bool) {
	m := partitionNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		return path + "?" + u.RawQuery
	}
	return path
}
