package main

import (
	"chimera/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
