package main

import (
	"log"

	"github.com/violet-hub/keygate/cmd"
	"github.com/violet-hub/keygate/config"
)

func main() {
	log.Printf("keygate %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
