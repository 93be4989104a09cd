// Package main provides the entry point for the envira CLI.
package main

import "os"

func main() {
	os.Exit(Execute())
}
