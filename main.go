package main

import "github.com/sw33tLie/pricescope/cmd"

func main() {
	cmd.Execute()
}
