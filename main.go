// Package main is the entry point for the curlmetrics CLI tool, which builds
// power play and shot metrics from curling end and stone data.
package main

import "github.com/pable/go-curling-metrics/cmd"

func main() {
	cmd.Execute()
}
