package main

import (
	"listing-watch/internal/cli"
)

func main() {
	cli.Execute()
}
