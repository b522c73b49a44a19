// Package main provides the entry point for the dirkv CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/dirkv/cmd/dirkv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
