package main

import (
	"ocm.software/open-component-model/appmodel/cli/cmd"
)

func main() {
	cmd.Execute()
}
