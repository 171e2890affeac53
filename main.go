package main

import (
	"github.com/frc4533-lincoln/robudst/cmd"
)

func main() {
	cmd.Execute()
}
