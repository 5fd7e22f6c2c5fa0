package main

import (
	"fmt"
	"os"

	"cardforge/commands"
	"cardforge/handlers"
	"cardforge/modules/db"
	"cardforge/modules/env"
	"cardforge/modules/logger"
	"cardforge/modules/logging"
	"cardforge/services"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	env.LoadEnvFile()

	if len(os.Args) > 1 {
		handlers.HandleArgs(os.Args[1:])
		return
	}

	logger.Print(logger.Banner)

	db.Init()

	if err := logging.Init(env.GetEnv("REQUEST_LOGS_DSN", "")); err != nil {
		logger.Fatal("Failed to initialize request logging:", err)
	}

	handlers.PrepareServices()

	if env.GetEnv("NO_CONSOLE", "false") == "true" {
		bootBlocking()
		return
	}

	for _, service := range services.ServiceRegistry {
		if service.Boot != nil {
			go service.Boot()
		}
	}

	program := tea.NewProgram(commands.InitialModel())
	if _, err := program.Run(); err != nil {
		logger.Fatal("Console error:", err)
	}
}

// bootBlocking runs the http service in the foreground, for containers and
// unit files where no interactive console exists.
func bootBlocking() {
	httpService, ok := services.ServiceRegistry["http"]
	if !ok || httpService.Boot == nil {
		logger.Fatal("No HTTP service registered")
	}

	go func() {
		for log := range services.LogsChannel {
			fmt.Print(log)
		}
	}()

	httpService.Boot()
}
