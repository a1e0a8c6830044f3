package main

import (
	"os"

	"github.com/osmoslab/taxonet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
