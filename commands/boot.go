package commands

import "cardforge/services"

func Boot(model *Model) {
	for _, service := range services.ServiceRegistry {
		if service.Boot != nil {
			go service.Boot()
		}
	}
}
