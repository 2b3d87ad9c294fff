package main

import (
	"os"

	"github.com/zjkmxy/pktsched/sched/cmd"
)

func main() {
	if err := cmd.CmdPktsched.Execute(); err != nil {
		os.Exit(1)
	}
}
