package main

import (
	"os"

	"github.com/adalundhe/subpop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
