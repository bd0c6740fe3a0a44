package main

import "github.com/agentic-research/dirtest/cmd"

func main() {
	cmd.Execute()
}
