package main

import "github.com/opencode-ai/logvault/cmd"

func main() {
	cmd.Execute()
}
