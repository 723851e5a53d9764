package main

import "github.com/tixly/tixly/internal/cli"

func main() {
	cli.Execute()
}
