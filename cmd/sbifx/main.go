package main

import "github.com/chinyancb/sbifx/internal/cli"

func main() {
	cli.Execute()
}
