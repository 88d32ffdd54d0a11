package main

import (
	"github.com/oleg-smirsky/LaudReader/cmd"
)

func main() {
	cmd.Execute()
}
