package main

import (
	"context"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	os.Exit(newApp(os.Stdout, os.Stderr).run(context.Background(), os.Args))
}
