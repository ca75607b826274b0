// Command pulse ingests team activity, resolves identities and serves the feed.
package main

import (
	"os"

	"github.com/custodia-labs/pulse/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
