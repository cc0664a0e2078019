// Package version exposes build identification for nchat.
package version

import (
	"fmt"
	"runtime"
)

// Version is the application version. Release builds override it with
// -ldflags "-X github.com/Iron-Ham/nchat/internal/version.Version=x.y.z".
var Version = "dev"

// Platform describes the operating system, architecture and Go toolchain
// the binary was built with, e.g. "linux/amd64 (go1.25.5)".
func Platform() string {
	return fmt.Sprintf("%s/%s (%s)", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// Banner returns the multi-line text printed by --version.
func Banner() string {
	return fmt.Sprintf("nchat %s\n\nCopyright (c) 2019 Kristofer Berggren\n\n"+
		"nchat is distributed under the MIT license.\n\n"+
		"Written by Kristofer Berggren.\n", Version)
}
