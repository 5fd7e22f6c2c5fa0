package forgehttp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cardforge/modules/logging"

	"github.com/valyala/fasthttp"
)

func getRequestSize(ctx *fasthttp.RequestCtx) int64 {
	totalSize := int64(len(ctx.Method()))
	totalSize += int64(len(ctx.URI().String()))

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		totalSize += int64(len(key) + len(value))
	})

	totalSize += int64(len(ctx.Request.Body()))

	return totalSize
}

func getResponseSize(ctx *fasthttp.RequestCtx) int64 {
	totalSize := int64(0)

	ctx.Response.Header.VisitAll(func(key, value []byte) {
		totalSize += int64(len(key) + len(value))
	})

	totalSize += int64(len(ctx.Response.Body()))

	return totalSize
}

func logRequest(ctx *fasthttp.RequestCtx, timeStart time.Time) {
	if !logging.Enabled() {
		return
	}

	reqHeadersMap := make(map[string]string)
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := string(key)
		// never persist credentials
		if strings.EqualFold(name, "Authorization") || strings.EqualFold(name, "Cookie") {
			return
		}
		reqHeadersMap[name] = string(value)
	})

	reqHeaders, _ := json.Marshal(reqHeadersMap)

	log := &logging.RequestLog{
		RequestTime:    timeStart.UnixMilli(),
		ClientIP:       clientIP(ctx),
		Method:         string(ctx.Method()),
		Path:           string(ctx.Path()),
		QueryParams:    queryParamString(ctx.QueryArgs().String()),
		RequestHeaders: json.RawMessage(reqHeaders),
		ResponseStatus: ctx.Response.StatusCode(),
		ResponseTime:   time.Since(timeStart).Milliseconds(),
		RequestSize:    getRequestSize(ctx),
		ResponseSize:   getResponseSize(ctx),
		UserAgent:      string(ctx.Request.Header.UserAgent()),
	}

	select {
	case logging.RequestLogsChannel <- log:
	default:
	}
}

func queryParamString(query string) json.RawMessage {
	params := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			continue
		}

		params[parts[0]] = parts[1]
	}

	data, _ := json.Marshal(params)
	return data
}

func processRequestLogs() {
	for log := range logging.RequestLogsChannel {
		logs := logging.CollectAdditionalLogs(log)
		if len(logs) > 0 {
			if err := logging.BatchInsertRequestLogs(logs); err != nil {
				service.ErrorLog(fmt.Sprintf("Failed to insert logs: %v", err))
			}
		}
	}
}
