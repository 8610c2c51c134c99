// Package main is the entry point for the image-optim application.
package main

import (
	"os"

	"github.com/ironsheep/image-optim/cmd/image-optim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
