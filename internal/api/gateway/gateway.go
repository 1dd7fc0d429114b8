// Package gateway serves the read-only part of the Provisioner API over HTTP
// together with the health and metrics endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	pbgamehost "github.com/r-heap47/gamehost/internal/pb/gamehost"
)

// Config - gateway config
type Config struct {
	Provisioner pbgamehost.ProvisionerServer
	// Registry is exposed on /metrics. Optional.
	Registry *prometheus.Registry
	// Healthy backs /healthz. Nil reports healthy.
	Healthy func() bool
	Logger  *zap.Logger
}

type route struct {
	pattern string
	handler runtime.HandlerFunc
}

type gateway struct {
	srv     pbgamehost.ProvisionerServer
	healthy func() bool
	logger  *zap.Logger
}

// New builds the gateway mux.
func New(cfg *Config) (*runtime.ServeMux, error) {
	g := &gateway{
		srv:     cfg.Provisioner,
		healthy: cfg.Healthy,
		logger:  cfg.Logger,
	}
	if g.healthy == nil {
		g.healthy = func() bool { return true }
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.Named("gateway")

	routes := []route{
		{"/v1/servers", g.listServers},
		{"/v1/servers/{identifier}/status", g.serverStatus},
		{"/v1/servers/{identifier}/usage", g.serverUsage},
		{"/v1/placement", g.placement},
		{"/healthz", g.healthz},
	}
	if cfg.Registry != nil {
		metrics := promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
		routes = append(routes, route{"/metrics", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
			metrics.ServeHTTP(w, r)
		}})
	}

	mux := runtime.NewServeMux()
	for _, rt := range routes {
		if err := mux.HandlePath(http.MethodGet, rt.pattern, rt.handler); err != nil {
			return nil, fmt.Errorf("mux.HandlePath %s: %w", rt.pattern, err)
		}
	}

	return mux, nil
}

func (g *gateway) listServers(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	page, err := queryInt(r, "page")
	if err != nil {
		g.writeError(w, status.Error(codes.InvalidArgument, err.Error()))
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		g.writeError(w, status.Error(codes.InvalidArgument, err.Error()))
		return
	}

	g.respond(r.Context(), w, func(ctx context.Context) (any, error) {
		return g.srv.ListServers(ctx, &pbgamehost.ListRequest{Page: page, Size: size})
	})
}

func (g *gateway) serverStatus(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.respond(r.Context(), w, func(ctx context.Context) (any, error) {
		return g.srv.ServerStatus(ctx, &pbgamehost.ServerRef{Identifier: params["identifier"]})
	})
}

func (g *gateway) serverUsage(w http.ResponseWriter, r *http.Request, params map[string]string) {
	g.respond(r.Context(), w, func(ctx context.Context) (any, error) {
		return g.srv.ServerUsage(ctx, &pbgamehost.ServerRef{Identifier: params["identifier"]})
	})
}

func (g *gateway) placement(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	g.respond(r.Context(), w, func(ctx context.Context) (any, error) {
		return g.srv.PreviewPlacement(ctx, &emptypb.Empty{})
	})
}

func (g *gateway) healthz(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	if !g.healthy() {
		g.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "panel unreachable"})
		return
	}
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *gateway) respond(ctx context.Context, w http.ResponseWriter, call func(ctx context.Context) (any, error)) {
	resp, err := call(ctx)
	if err != nil {
		g.writeError(w, err)
		return
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// writeError renders a status error with the HTTP code grpc-gateway maps it to.
func (g *gateway) writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)

	g.writeJSON(w, runtime.HTTPStatusFromCode(st.Code()), map[string]any{
		"code":    st.Code().String(),
		"message": st.Message(),
	})
}

func (g *gateway) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("write response", zap.Error(err))
	}
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " should be an integer")
	}

	return n, nil
}
