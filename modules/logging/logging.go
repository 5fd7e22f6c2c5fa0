package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

// Request logs flow through RequestLogsChannel and get flushed to postgres
// in batches. When no DSN is configured the channel is drained and dropped
// so handlers never block on logging.

type RequestLog struct {
	RequestTime    int64           `json:"request_time"`
	ClientIP       string          `json:"client_ip"`
	Method         string          `json:"method"`
	Path           string          `json:"path"`
	QueryParams    json.RawMessage `json:"query_params"`
	RequestHeaders json.RawMessage `json:"request_headers"`
	ResponseStatus int             `json:"response_status"`
	ResponseTime   int64           `json:"response_time"`
	RequestSize    int64           `json:"request_size"`
	ResponseSize   int64           `json:"response_size"`
	UserAgent      string          `json:"user_agent"`
}

var (
	RequestLogsChannel = make(chan *RequestLog, 1024*8)

	conn *sql.DB
)

const createTable = `
	CREATE TABLE IF NOT EXISTS requests (
		id BIGSERIAL PRIMARY KEY,
		request_time BIGINT NOT NULL,
		client_ip TEXT NOT NULL,
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		query_params JSONB,
		request_headers JSONB,
		response_status INT NOT NULL,
		response_time BIGINT NOT NULL,
		request_size BIGINT NOT NULL,
		response_size BIGINT NOT NULL,
		user_agent TEXT
	)
`

// Init connects to postgres and makes sure the requests table exists. An
// empty DSN disables persistence.
func Init(dsn string) error {
	if dsn == "" {
		return nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create requests table: %w", err)
	}

	conn = db
	return nil
}

func Enabled() bool {
	return conn != nil
}

func CollectAdditionalLogs(initialLog *RequestLog) []*RequestLog {
	logs := []*RequestLog{initialLog}

	for len(logs) < 128 {
		select {
		case log := <-RequestLogsChannel:
			logs = append(logs, log)
		default:
			return logs
		}
	}

	return logs
}

func BatchInsertRequestLogs(logs []*RequestLog) error {
	if len(logs) == 0 {
		return nil
	}
	if conn == nil {
		return nil
	}

	transaction, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer transaction.Rollback()

	placeholders := make([]string, len(logs))
	values := make([]interface{}, 0, len(logs)*11)

	for i, log := range logs {
		placeholders[i] = fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			i*11+1, i*11+2, i*11+3, i*11+4, i*11+5, i*11+6,
			i*11+7, i*11+8, i*11+9, i*11+10, i*11+11,
		)
		values = append(values,
			log.RequestTime,
			log.ClientIP,
			log.Method,
			log.Path,
			log.QueryParams,
			log.RequestHeaders,
			log.ResponseStatus,
			log.ResponseTime,
			log.RequestSize,
			log.ResponseSize,
			log.UserAgent,
		)
	}

	query := fmt.Sprintf(`
        INSERT INTO requests (
            request_time, client_ip, method, path, query_params,
            request_headers, response_status, response_time,
            request_size, response_size, user_agent
        ) VALUES %s
    `, strings.Join(placeholders, ","))

	if _, err := transaction.Exec(query, values...); err != nil {
		return fmt.Errorf("batch insert failed: %v", err)
	}

	return transaction.Commit()
}
