package forgehttp

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// Every endpoint answers with the same envelope: {"success": true, "data":
// ...} or {"success": false, "error": ..., "error_code": ...}. Binary
// responses (PNG downloads) are the one exception.

const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeParseError      = "PARSE_ERROR"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidFormat   = "INVALID_FORMAT"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternalError   = "INTERNAL_ERROR"
)

type apiResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

func respondJSON(ctx *fasthttp.RequestCtx, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetBodyString(`{"success":false,"error":"failed to encode response","error_code":"INTERNAL_ERROR"}`)
		return
	}

	ctx.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetBody(body)
}

func respondData(ctx *fasthttp.RequestCtx, data any) {
	respondJSON(ctx, fasthttp.StatusOK, apiResponse{Success: true, Data: data})
}

func respondError(ctx *fasthttp.RequestCtx, status int, message, code string) {
	respondJSON(ctx, status, apiResponse{Success: false, Error: message, ErrorCode: code})
}
