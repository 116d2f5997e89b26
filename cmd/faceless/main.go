package main

import "github.com/bobarin/facelessrender/internal/cli"

func main() {
	cli.Main()
}
