// This program performs administrative tasks for a BlackSilk node.
package main

import (
	"fmt"
	"os"

	"github.com/blacksilk/node/app/tooling/admin/commands"
	"github.com/blacksilk/node/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the requested command.
	if err := run(log); err != nil {
		log.Errorw("admin", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	log.Infow("admin", "build", build, "args", os.Args[1:])
	return processCommands(os.Stdout, os.Args)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(w *os.File, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: admin keygen <folder> <name> | genesis <network> | emission <network> <height>")
	}

	switch args[1] {
	case "keygen":
		if err := commands.KeyGen(w, args); err != nil {
			return fmt.Errorf("generating node key: %w", err)
		}
	case "genesis":
		if err := commands.Genesis(w, args); err != nil {
			return fmt.Errorf("printing genesis: %w", err)
		}
	case "emission":
		if err := commands.Emission(w, args); err != nil {
			return fmt.Errorf("printing emission: %w", err)
		}
	default:
		return fmt.Errorf("unknown command %q", args[1])
	}

	return nil
}
