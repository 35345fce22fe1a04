// Command navex validates entity models and expands, compiles and runs
// navigation queries described by scenario files.
//
// Usage:
//
//	navex [--config navex.yaml] [--format text|json] <command>
//
// Commands:
//   - validate: check a CUE model
//   - expand: print the expansion and SQL of a scenario query
//   - run: execute a scenario against SQLite or PostgreSQL
//   - test: run a directory of scenarios with golden snapshots
//   - config show: print the effective configuration
package main

import (
	"os"

	"github.com/roach88/navex/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
