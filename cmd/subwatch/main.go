package main

import (
	"os"

	"github.com/subwatch/pkg/cmd"
)

func main() {
	// cobra already printed the error
	if err := cmd.Run(); err != nil {
		os.Exit(1)
	}
}
