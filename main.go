package main

import (
	"os"

	"github.com/leefowlercu/timelapse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
