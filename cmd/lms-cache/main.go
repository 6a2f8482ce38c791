// Command lms-cache administers the LMS tenant cache and serves its admin API.
package main

import (
	"os"

	"github.com/Sternrassler/lms-tenant-cache/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
