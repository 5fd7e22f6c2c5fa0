package forgehttp

import (
	"github.com/valyala/fasthttp"
)

var EndpointList = map[string]func(*fasthttp.RequestCtx){}

func init() {
	register("GET", "/api/health", Health)
	register("GET", "/api/version", Version)

	register("POST", "/api/cards/parse", CardsParse)
	register("POST", "/api/cards/inject", CardsInject)
	register("POST", "/api/cards/validate", CardsValidate)
	register("POST", "/api/cards/tokens", CardsTokens)

	register("POST", "/api/lorebook/export", LorebookExport)
	register("POST", "/api/lorebook/import", LorebookImport)

	register("POST", "/api/quack/import", QuackImport)
	register("POST", "/api/quack/preview", QuackPreview)

	register("POST", "/api/proxy/chat", ProxyChat)
	register("POST", "/api/proxy/models", ProxyModels)
	register("POST", "/api/proxy/image", ProxyImage)

	register("GET", "/api/library/list", LibraryList)
	register("GET", "/api/library/get", LibraryGet)
	register("POST", "/api/library/save", LibrarySave)
	register("POST", "/api/library/delete", LibraryDelete)
}

func register(method, path string, handler fasthttp.RequestHandler) {
	EndpointList[method+":"+path] = handler
}

func GetHandler(key string) (func(*fasthttp.RequestCtx), bool) {
	handler, exists := EndpointList[key]
	return handler, exists
}
