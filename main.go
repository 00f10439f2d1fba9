package main

import (
	"os"

	"github.com/nlq2sql/nlq2sql/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
