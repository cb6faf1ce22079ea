package storage

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"strings"

	"go.uber.org/zap"
)

var redactedHeaders = map[string]struct{}{
	"Accesskey":     {},
	"Authorization": {},
	"X-Auth-Key":    {},
}

func withClientTrace(ctx context.Context, logger *zap.Logger) context.Context {
	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			logger.Info("dns lookup", zap.String("host", info.Host))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			logger.Info("dns resolved", zap.Any("addrs", info.Addrs), zap.Error(info.Err))
		},
		ConnectStart: func(network, addr string) {
			logger.Info("connecting", zap.String("network", network), zap.String("addr", addr))
		},
		ConnectDone: func(network, addr string, err error) {
			logger.Info("connected", zap.String("network", network), zap.String("addr", addr), zap.Error(err))
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			logger.Info("tls handshake",
				zap.String("version", tls.VersionName(state.Version)),
				zap.String("server_name", state.ServerName),
				zap.Error(err),
			)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			logger.Info("connection acquired", zap.Bool("reused", info.Reused))
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			logger.Info("request written", zap.Error(info.Err))
		},
		GotFirstResponseByte: func() {
			logger.Info("first response byte")
		},
	}
	return httptrace.WithClientTrace(ctx, trace)
}

func logRequest(logger *zap.Logger, req *http.Request) {
	logger.Info("request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int64("content_length", req.ContentLength),
		zap.Any("headers", redact(req.Header)),
	)
}

func logResponse(logger *zap.Logger, resp *http.Response, body []byte) {
	logger.Info("response",
		zap.String("status", resp.Status),
		zap.String("proto", resp.Proto),
		zap.Any("headers", redact(resp.Header)),
		zap.String("body", strings.TrimSpace(string(body))),
	)
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		if _, secret := redactedHeaders[http.CanonicalHeaderKey(key)]; secret {
			out[key] = "<redacted>"
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}
