package main

import (
	"os"

	"github.com/bankwatch/bankwatch/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
