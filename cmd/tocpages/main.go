package main

import "github.com/dgallion1/tocpages/internal/cli"

func main() {
	cli.Execute()
}
