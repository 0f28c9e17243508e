package main

import (
	"os"

	"github.com/congmo/rdbscan/internal/cli"
)

func main() {
	code := cli.Execute(os.Args[1:])
	os.Exit(code)
}
