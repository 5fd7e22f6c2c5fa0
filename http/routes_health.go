package forgehttp

import (
	"github.com/valyala/fasthttp"
)

const (
	AppName    = "CardForge"
	AppVersion = "0.1.0"
)

func Health(ctx *fasthttp.RequestCtx) {
	respondJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "healthy"})
}

func Version(ctx *fasthttp.RequestCtx) {
	respondJSON(ctx, fasthttp.StatusOK, map[string]string{
		"name":    AppName,
		"version": AppVersion,
	})
}
