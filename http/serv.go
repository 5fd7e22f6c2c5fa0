package forgehttp

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"cardforge/modules/env"
	"cardforge/modules/ratelimit"
	"cardforge/modules/security"
	"cardforge/services"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/acme/autocert"
)

var (
	service        *services.Service
	egressPolicy   *security.Policy
	limiter        *ratelimit.Limiter
	trustedProxies []string
	maxUploadBytes int64
	quackBaseURL   string
)

const defaultAllowlist = "api.openai.com,api.anthropic.com,openrouter.ai,generativelanguage.googleapis.com"

func Prepare(_service *services.Service) func() {
	service = _service

	binding := env.GetEnv("HTTP_BINDING", "")
	addr := binding + ":" + env.GetEnv("HTTP_PORT", "8080")

	maxUploadMB := envInt("MAX_UPLOAD_MB", 20)
	maxUploadBytes = int64(maxUploadMB) * 1024 * 1024

	egressPolicy = &security.Policy{
		Allowlist:      splitList(env.GetEnv("PROXY_URL_ALLOWLIST", defaultAllowlist)),
		AllowLocalhost: env.GetEnv("PROXY_ALLOW_LOCALHOST", "false") == "true",
		Resolver:       env.GetEnv("DNS_RESOLVER", "1.1.1.1:53"),
	}

	limiter = ratelimit.New(
		envInt("RATE_LIMIT_REQUESTS", 10),
		time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60))*time.Second,
	)

	trustedProxies = splitList(env.GetEnv("TRUSTED_PROXIES", ""))
	quackBaseURL = env.GetEnv("QUACK_BASE_URL", "")

	server := &fasthttp.Server{
		Handler: requestHandler,
		// slack for the multipart framing around a max-size upload
		MaxRequestBodySize: int(maxUploadBytes) + 1024*1024,
		ReadTimeout:        120 * time.Second,
		WriteTimeout:       120 * time.Second,
	}

	return func() {
		go processRequestLogs()
		go func() {
			for {
				time.Sleep(5 * time.Minute)
				limiter.Cleanup()
			}
		}()

		service.MarkOnline()

		if domain := env.GetEnv("AUTOCERT_DOMAIN", ""); domain != "" {
			manager := &autocert.Manager{
				Prompt:     autocert.AcceptTOS,
				HostPolicy: autocert.HostWhitelist(domain),
				Cache:      autocert.DirCache(env.GetEnv("AUTOCERT_CACHE_DIR", "./certs")),
			}

			httpsAddr := binding + ":" + env.GetEnv("HTTPS_PORT", "443")
			service.InfoLog("Starting HTTPS server on " + httpsAddr + " for " + domain)

			ln, err := net.Listen("tcp", httpsAddr)
			if err != nil {
				service.FatalLog(fmt.Sprintf("Error creating listener: %v", err))
				return
			}

			tlsListener := tls.NewListener(ln, manager.TLSConfig())
			if err := server.Serve(tlsListener); err != nil {
				service.FatalLog(fmt.Sprintf("Error serving: %v", err))
			}
			return
		}

		service.InfoLog("Starting HTTP server on " + addr)
		if err := server.ListenAndServe(addr); err != nil {
			service.FatalLog(fmt.Sprintf("Error starting HTTP server: %v", err))
		}
	}
}

func requestHandler(ctx *fasthttp.RequestCtx) {
	defer func() {
		if err := recover(); err != nil {
			service.ErrorLog(fmt.Sprintf("recovered from panic in requestHandler: %v", err))
			respondError(ctx, fasthttp.StatusInternalServerError, "An unexpected error occurred", CodeInternalError)
		}
	}()

	timeStart := time.Now()

	ctx.Response.Header.Set("Access-Control-Allow-Origin", env.GetEnv("CORS_ORIGIN", "*"))
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if string(ctx.Method()) == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	cleanedPath := string(ctx.Path())
	if idx := strings.IndexByte(cleanedPath, '?'); idx != -1 {
		cleanedPath = cleanedPath[:idx]
	}

	if strings.HasPrefix(cleanedPath, "/api/proxy") && !checkRateLimit(ctx) {
		logRequest(ctx, timeStart)
		return
	}

	if handler, exists := GetHandler(fmt.Sprintf("%s:%s", string(ctx.Method()), cleanedPath)); exists {
		handler(ctx)
		logRequest(ctx, timeStart)
		return
	}

	respondError(ctx, fasthttp.StatusNotFound, "Not found", CodeValidationError)
	logRequest(ctx, timeStart)
}

// checkRateLimit applies the per-IP sliding window to proxy routes. The
// X-RateLimit headers are set on every response, 429s get a Retry-After.
func checkRateLimit(ctx *fasthttp.RequestCtx) bool {
	ip := clientIP(ctx)

	ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit))

	if !limiter.Allow(ip) {
		retryAfter := int(limiter.RetryAfter(ip).Seconds() + 0.5)
		if retryAfter < 1 {
			retryAfter = 1
		}

		ctx.Response.Header.Set("X-RateLimit-Remaining", "0")
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfter))
		respondError(ctx, fasthttp.StatusTooManyRequests, "Rate limit exceeded, try again later", CodeRateLimited)
		return false
	}

	ctx.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(ip)))
	return true
}

// EgressAllowlist exposes the configured destination allowlist for the
// operator console.
func EgressAllowlist() []string {
	if egressPolicy == nil {
		return nil
	}

	return egressPolicy.Allowlist
}

func envInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(env.GetEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	var list []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			list = append(list, part)
		}
	}
	return list
}
