package main

import (
	"os"

	"github.com/bhandras/delight/rtc/cmd/rtc/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
