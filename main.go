package main

import "github.com/agentic-research/astrocat/cmd"

func main() {
	cmd.Execute()
}
