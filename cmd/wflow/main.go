package main

import (
	"whisperflow/cmd/wflow/cmd"
)

func main() {
	cmd.Execute()
}
