package platform_test

import (
	"fmt"

	"github.com/ZebulonRouseFrantzich/forge-install/internal/platform"
)

func ExampleResolveVariant() {
	v := platform.ResolveVariant("Windows")
	key, arch := v.Keys()

	fmt.Println(v, key, arch, v.ExtractDir())
	// Output: win32 win32 x32 win32-x32
}

func ExampleAllExtractDirs() {
	fmt.Println(platform.AllExtractDirs())
	// Output: [darwin-x64 unknown-src win32-x32]
}
