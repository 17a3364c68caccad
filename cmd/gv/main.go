package main

import (
	"errors"
	"log"
	"os"

	"gitvault/cmd/gv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if errors.Is(err, commands.ErrSilentExit) {
			os.Exit(1)
		}
		log.Fatal(err)
	}
}
