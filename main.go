package main

import (
	"fmt"
	"os"

	"github.com/kilianp07/hems/cmd"
	"github.com/kilianp07/hems/internal/exitcode"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitcode.GetCode(err))
	}
}
