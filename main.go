package main

import (
	"os"

	"github.com/BlagoCuljak/ApiPosture/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
