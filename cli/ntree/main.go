package main

import (
	"os"

	ntreecmder "github.com/cienislaw/thirtybees/cmd/ntree"
)

func main() {
	cmd := ntreecmder.NewNtreeCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
