// Package platform detects the host the installer runs on and resolves it to
// one of the distribution variants published by the version-info endpoint.
//
// Detection uses runtime.GOOS/GOARCH for the basics and gopsutil for the
// kernel release and, on Linux, the distribution. The result is also exposed
// to Lua configuration files as a read-only platform table.
package platform

import (
	"context"
	"fmt"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string  // "linux", "darwin", "windows"
	Arch     string  // normalized architecture ("amd64", "arm64", "386", ...)
	ArchRaw  string  // original architecture string
	Release  string  // kernel release, empty if unavailable
	Platform string  // distro ID (Linux only, e.g., "ubuntu")
	Family   string  // canonical family (e.g., "debian")
	Version  string  // distro version (Linux only, e.g., "22.04")
	Variant  Variant // distribution variant resolved from OS
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != "linux" || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Summary renders the platform as "<os>_<arch>_<release> (<variant>)" for
// the opening log line.
func (i *Info) Summary() string {
	release := i.Release
	if release == "" {
		release = "unknown"
	}
	return fmt.Sprintf("%s_%s_%s (%s)", i.OS, i.ArchRaw, release, i.Variant)
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It lets callers pin the platform,
// for example to install a distribution for another host.
type StaticDetector struct {
	Info *Info
}

// Detect returns a copy of the configured Info with its variant resolved.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	if s.Info == nil {
		return nil, fmt.Errorf("static detector has no platform info")
	}
	info := *s.Info
	if info.Variant == VariantUnknown {
		info.Variant = ResolveVariant(info.OS)
	}
	return &info, nil
}
