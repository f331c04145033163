// Package main is the entry point for the alert pipeline.
package main

import "alert-pipeline/cmd/alertpipe/cmd"

func main() {
	cmd.Execute()
}
