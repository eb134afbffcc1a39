package main

import (
	"github.com/OFFIS-RIT/fundtrace/backend/internal/server"
	"github.com/OFFIS-RIT/fundtrace/backend/internal/util"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger"
	"github.com/OFFIS-RIT/fundtrace/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
		JSON:  util.GetEnvBool("LOG_JSON", false),
	})
	logger.Init(consoleLogger)

	server.Init()
}
