package main

import "github.com/ObiAU/airwatch/internal/cli"

func main() {
	cli.Execute()
}
