package handlers

import (
	forgehttp "cardforge/http"
	"cardforge/services"
)

func PrepareServices() {
	httpService := services.RegisterService("http", "HTTP Server")
	httpService.Boot = forgehttp.Prepare(httpService)
}
