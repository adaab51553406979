// saupload is the service-account upload scheduler's CLI entrypoint.
package main

import (
	"os"

	"github.com/saupload/saupload/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
