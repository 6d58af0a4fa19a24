package main

import (
	"os"

	"github.com/strlkr/lastfm-rp/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
