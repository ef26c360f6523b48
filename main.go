package main

import (
	"os"

	"github.com/evalfun/zonesync/coremain"
)

func main() {
	if err := coremain.Run(); err != nil {
		os.Exit(1)
	}
}
