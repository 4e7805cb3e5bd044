// Package main provides productctl, a command line client for the flat-file
// product record store.
//
// Usage:
//
//	productctl [flags] <command> [args]
//
// Commands:
//
//	list    - List every record in file order
//	add     - Append a record
//	update  - Replace the first record matching the given values
//	delete  - Remove the first record matching the given values
//	import  - Merge an external file into the store
package main

import (
	"fmt"
	"os"

	"github.com/vyrodovalexey/productstore/cmd/productctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
