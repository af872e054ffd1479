package main

import (
	"os"

	"github.com/vitalhub/vitalsync/syncservice"
)

func main() {
	if err := syncservice.Run(); err != nil {
		os.Exit(1)
	}
}
