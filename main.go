package main

import (
	"github.com/kdsuneraavinash/CH-Bin/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
