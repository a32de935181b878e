package main

import "github.com/ftl/ppi/cmd"

func main() {
	cmd.Execute()
}
