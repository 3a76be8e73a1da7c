package main

import "github.com/dl-alexandre/drivemirror/internal/cli"

func main() {
	cli.Execute()
}
