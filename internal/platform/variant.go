package platform

import (
	"errors"
	"strings"
)

// ErrUnsupportedPlatform is returned when a platform resolves to
// VariantUnknown and the caller does not accept the source fallback.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Variant is the distribution flavour published for a platform.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantDarwin
	VariantLinux
	VariantWin32
)

type variantDef struct {
	prefixes   []string
	platform   string
	arch       string
	extractDir string
	name       string
}

var variants = map[Variant]variantDef{
	VariantDarwin: {
		prefixes:   []string{"darwin"},
		platform:   "darwin",
		arch:       "x64",
		extractDir: "darwin-x64",
		name:       "darwin",
	},
	VariantLinux: {
		prefixes:   []string{"linux"},
		platform:   "linux",
		arch:       "src",
		extractDir: "unknown-src",
		name:       "linux",
	},
	VariantWin32: {
		prefixes:   []string{"win32", "windows"},
		platform:   "win32",
		arch:       "x32",
		extractDir: "win32-x32",
		name:       "win32",
	},
	VariantUnknown: {
		platform:   "unknown",
		arch:       "src",
		extractDir: "unknown-src",
		name:       "unknown",
	},
}

// resolveOrder fixes the matching order so resolution is deterministic.
var resolveOrder = []Variant{VariantDarwin, VariantLinux, VariantWin32}

// ResolveVariant maps a platform name to its variant by case-insensitive
// prefix. Names matching nothing resolve to VariantUnknown.
func ResolveVariant(name string) Variant {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, v := range resolveOrder {
		for _, prefix := range variants[v].prefixes {
			if strings.HasPrefix(name, prefix) {
				return v
			}
		}
	}
	return VariantUnknown
}

// Keys returns the platform and architecture keys used to select the
// artifact from the version-info document.
func (v Variant) Keys() (platform, arch string) {
	def := v.def()
	return def.platform, def.arch
}

// ExtractDir is the top-level directory the variant's archive unpacks to.
func (v Variant) ExtractDir() string {
	return v.def().extractDir
}

// String returns the variant name.
func (v Variant) String() string {
	return v.def().name
}

func (v Variant) def() variantDef {
	if def, ok := variants[v]; ok {
		return def
	}
	return variants[VariantUnknown]
}

// AllExtractDirs lists every directory a distribution archive may unpack
// to, without duplicates, in a stable order.
func AllExtractDirs() []string {
	var dirs []string
	seen := make(map[string]bool)
	order := []Variant{VariantDarwin, VariantLinux, VariantWin32, VariantUnknown}
	for _, v := range order {
		dir := v.ExtractDir()
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
