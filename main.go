package main

import "github.com/orvion-sh/orvion-quick-start/cmd"

func main() {
	cmd.Execute()
}
