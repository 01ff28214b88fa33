package main

import (
	"os"

	"github.com/adityaviki/sentinelops/cmd/sentinelops/commands"
)

func main() {
	os.Exit(commands.Execute())
}
