package services

import (
	"fmt"
	"sync"
	"time"

	"cardforge/modules/logger"
)

type Service struct {
	Name        string
	DisplayName string
	OnlineSince int64
	Boot        func()
}

var (
	ServiceRegistry = map[string]*Service{}
	registryLock    sync.Mutex

	// LogsChannel feeds the interactive console. Logs written while no
	// console is draining the channel fall through to stdout.
	LogsChannel = make(chan string, 1024)

	// ProcessService is the implicit service for everything that happens
	// outside a registered service (arg handling, boot, background jobs).
	ProcessService = RegisterService("process", "Process")
)

func RegisterService(name, displayName string) *Service {
	registryLock.Lock()
	defer registryLock.Unlock()

	if existingService, ok := ServiceRegistry[name]; ok {
		return existingService
	}

	newService := &Service{
		Name:        name,
		DisplayName: displayName,
		OnlineSince: 0,
	}

	ServiceRegistry[name] = newService
	return newService
}

func (s *Service) InfoLog(message string) {
	PrintToModel("\033[0;37m[\033[0;34mINFO\033[0;37m] \033[0;37m→\033[0;37m \033[0;94m" + s.DisplayName + "\033[0;37m \033[0;37m←\033[0;37m \033[0;37m→\033[0;37m \033[0;37m" + message + "\033[0m\n")
}

func (s *Service) WarnLog(message string) {
	PrintToModel("\033[0;37m[\033[0;33mWARN\033[0;37m] \033[0;37m→\033[0;37m \033[0;94m" + s.DisplayName + "\033[0;37m \033[0;37m←\033[0;37m \033[0;37m→\033[0;37m \033[0;37m" + message + "\033[0m\n")
}

func (s *Service) ErrorLog(message string) {
	PrintToModel("\033[0;37m[\033[0;31mERROR\033[0;37m] \033[0;37m→\033[0;37m \033[0;94m" + s.DisplayName + "\033[0;37m \033[0;37m←\033[0;37m \033[0;37m→\033[0;37m \033[0;37m" + message + "\033[0m\n")
}

func (s *Service) FatalLog(message string) {
	logger.Fatal(fmt.Sprintf("%s: %s", s.DisplayName, message))
}

func (s *Service) MarkOnline() {
	s.OnlineSince = time.Now().Unix()
}

func PrintToModel(message string) {
	select {
	case LogsChannel <- message:
	default:
		logger.Print(message)
	}
}
