package main

import (
	"github.com/gaugeworks/cloudgauge/cmd/cloudgauge/commands"
)

func main() {
	commands.Execute()
}
