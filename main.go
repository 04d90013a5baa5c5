package main

import (
	"os"

	"sparqlgen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
