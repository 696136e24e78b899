package main

import (
	"github.com/latticehq/lattice/internal/server"
	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
