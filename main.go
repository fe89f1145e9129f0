package main

import (
	"os"

	"github.com/talentsift/talentsift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
