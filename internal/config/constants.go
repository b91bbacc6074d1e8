package config

import (
	"time"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/release"
)

// Lua schema field names and globals
const (
	luaGlobalInstaller   = "installer"
	luaFieldVersionInfo  = "version_info_url"
	luaFieldProduct      = "product"
	luaFieldInstallDir   = "install_dir"
	luaFieldCanonicalDir = "canonical_dir"
	luaFieldTimeout      = "timeout_seconds"
	luaFieldSupport      = "support_contact"
	luaFieldStrict       = "strict_platform"
	luaFieldVerify       = "verify_command"
	luaFieldLog          = "log"
	luaFieldLogLevel     = "level"
	luaFieldLogFormat    = "format"
)

// Defaults applied to fields a config file leaves out.
const (
	DefaultVersionInfoURL = release.DefaultVersionInfoURL
	DefaultProduct        = "forge"
	DefaultInstallDir     = "bin"
	DefaultCanonicalDir   = "native"
	DefaultTimeout        = 10 * time.Second
	DefaultSupportContact = "support@trigger.io"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
)

// DefaultVerifyCommand is the postinstall sanity check.
var DefaultVerifyCommand = []string{"npx", "forge", "version"}

// MaxConfigFileSize caps how much of a config file is read.
const MaxConfigFileSize = 1 << 20
