package main

import "github.com/wycats/SferaDev-sub001/cmd/cli"

func main() {
	cli.Execute()
}
