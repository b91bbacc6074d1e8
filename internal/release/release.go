// Package release models the version-info document published by the
// distribution endpoint and selects the artifact for a platform.
package release

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultVersionInfoURL is the endpoint queried when no override is configured.
const DefaultVersionInfoURL = "https://trigger.io/ap/version_info"

// ChecksumSuffix is appended to an artifact URL to locate its checksum file.
const ChecksumSuffix = ".sha256"

var (
	// ErrArtifactNotFound is returned when the document has no URL for the
	// requested product, platform and architecture.
	ErrArtifactNotFound = errors.New("artifact not found in version info")

	// ErrMalformed is returned when the document cannot be decoded.
	ErrMalformed = errors.New("malformed version info")
)

// Architectures maps an architecture key to an artifact URL.
type Architectures map[string]string

// Platforms maps a platform key to its architectures.
type Platforms map[string]Architectures

// VersionInfo is the decoded version-info document:
//
//	{"distribution": {"forge": {"linux": {"src": "https://..."}}}}
type VersionInfo struct {
	Distribution map[string]Platforms `json:"distribution"`
}

// Parse decodes a version-info document.
func Parse(data []byte) (*VersionInfo, error) {
	var info VersionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if info.Distribution == nil {
		return nil, fmt.Errorf("%w: missing distribution", ErrMalformed)
	}
	return &info, nil
}

// Source returns the artifact URL for product/platformKey/archKey.
func (v *VersionInfo) Source(product, platformKey, archKey string) (string, error) {
	platforms, ok := v.Distribution[product]
	if !ok {
		return "", fmt.Errorf("%w: distribution.%s", ErrArtifactNotFound, product)
	}
	archs, ok := platforms[platformKey]
	if !ok {
		return "", fmt.Errorf("%w: distribution.%s.%s", ErrArtifactNotFound, product, platformKey)
	}
	source := strings.TrimSpace(archs[archKey])
	if source == "" {
		return "", fmt.Errorf("%w: distribution.%s.%s.%s", ErrArtifactNotFound, product, platformKey, archKey)
	}
	return source, nil
}

// ChecksumURL returns the location of the checksum file for source.
func ChecksumURL(source string) string {
	return source + ChecksumSuffix
}

// ArchiveName returns the last element of the source URL's path, ignoring
// any query string or fragment.
func ArchiveName(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse artifact URL %q: %w", source, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("artifact URL %q has no file name", source)
	}
	return name, nil
}
