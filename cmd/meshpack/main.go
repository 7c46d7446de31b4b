// Command meshpack is the entry point for the asset packaging CLI.
package main

import "github.com/meshpack/meshpack/cmd/meshpack/cmd"

func main() {
	cmd.Execute()
}
