package main

import (
	"os"

	"rwa-onchain/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
