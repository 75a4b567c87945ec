package main

import "github.com/tanq16/linkcheck/cmd"

func main() {
	cmd.Execute()
}
