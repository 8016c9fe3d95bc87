// Package main provides the cml-cli command line interface.
package main

import "github.com/BackendStack21/cml-go/cmd/cml-cli/cmd"

func main() {
	cmd.Execute()
}
