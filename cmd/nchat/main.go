// Command nchat is a terminal chat client.
package main

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/Iron-Ham/nchat/internal/cmd"
)

func main() {
	// Config, logs and databases hold account secrets.
	unix.Umask(0o077)
	os.Exit(cmd.Execute())
}
