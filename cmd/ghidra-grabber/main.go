package main

import "github.com/oshokin/ghidra-grabber/cmd/ghidra-grabber/cmd"

func main() {
	cmd.Execute()
}
