// Command social-sync cross-posts Bluesky posts to Mastodon.
package main

import (
	"fmt"
	"os"

	"github.com/hossain-khan/social-sync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
