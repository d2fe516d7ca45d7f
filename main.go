package main

import (
	"os"

	"github.com/conneroisu/kbdebug/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
