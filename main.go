package main

import "github.com/stratlang/stratc/cmd"

var version = "v0.3.0"

func main() {
	cmd.Execute(version)
}
