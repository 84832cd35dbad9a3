package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxLoggedArgLen caps string argument values in logs; bulk resolve calls
// can carry very large query payloads.
const maxLoggedArgLen = 200

// MCPRequestLogger returns middleware that logs MCP JSON-RPC traffic at
// debug level, with the tool name and redacted arguments on the request
// side and the JSON-RPC outcome on the response side. A nil logger
// disables logging and passes requests through.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			// Non-JSON bodies are still forwarded; the call struct just
			// stays empty in the log entry.
			var call rpcCall
			_ = json.Unmarshal(body, &call)

			logger.Debug("MCP request",
				zap.String("method", call.Method),
				zap.String("tool", call.Params.Name),
				zap.Any("arguments", redactArguments(call.Params.Arguments)),
			)

			capture := &rpcResponseCapture{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(capture, r)
			duration := time.Since(start)

			var reply rpcReply
			if err := json.Unmarshal(capture.body.Bytes(), &reply); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			if reply.Error != nil {
				logger.Debug("MCP response error",
					zap.String("tool", call.Params.Name),
					zap.Int("error_code", reply.Error.Code),
					zap.String("error_message", reply.Error.Message),
					zap.Duration("duration", duration),
				)
				return
			}
			logger.Debug("MCP response success",
				zap.String("tool", call.Params.Name),
				zap.Duration("duration", duration),
			)
		})
	}
}

// rpcCall is the slice of a JSON-RPC tools/call request this middleware
// cares about.
type rpcCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type rpcReply struct {
	Error *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponseCapture tees the response body so the JSON-RPC outcome can be
// logged after the handler runs.
type rpcResponseCapture struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (c *rpcResponseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

var sensitiveArgKeywords = []string{"password", "secret", "token", "key", "credential"}

// redactArguments masks credential-looking argument keys and truncates long
// string values before they reach the log.
func redactArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		if sensitiveArgKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok && len(s) > maxLoggedArgLen {
			out[k] = s[:maxLoggedArgLen] + "..."
			continue
		}
		out[k] = v
	}
	return out
}

func sensitiveArgKey(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range sensitiveArgKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
