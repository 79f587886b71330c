// Package main provides the vulndash command-line tool.
package main

import "vulndash/internal/cli"

func main() {
	cli.Execute()
}
