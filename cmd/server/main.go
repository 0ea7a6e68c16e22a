package main

import (
	"os"

	"github.com/Tyrowin/chatrelay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
