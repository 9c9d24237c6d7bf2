package main

import "github.com/julienstroheker/tgc/tgc/cmd"

func main() {
	cmd.Execute()
}
