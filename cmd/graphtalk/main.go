package main

import "github.com/corvino/graphtalk/internal/cli"

func main() {
	cli.Execute()
}
