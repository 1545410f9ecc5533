package main

import (
	"os"

	"github.com/nmoreaux/techwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
