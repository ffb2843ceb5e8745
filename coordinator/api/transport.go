package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/dispatcher"
	"github.com/absmach/fedcoord/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const versionKey = "version"

// Dispatcher is the part of the dispatcher the admin API drives.
type Dispatcher interface {
	SetHyperparams(ctx context.Context, params map[string]any) error
	Sessions(ctx context.Context) []dispatcher.Session
}

// MakeHandler serves the admin API and mounts ws, the client WebSocket handler, at /ws.
func MakeHandler(svc coordinator.Service, d Dispatcher, ws http.Handler, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Get("/model", otelhttp.NewHandler(kithttp.NewServer(
		getModelEndpoint(svc),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "get-model").ServeHTTP)

	mux.Put("/hyperparams", otelhttp.NewHandler(kithttp.NewServer(
		setHyperparamsEndpoint(svc, d),
		decodeHyperparamsReq,
		api.EncodeResponse,
		opts...,
	), "set-hyperparams").ServeHTTP)

	mux.Route("/updates", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			pendingUpdatesEndpoint(svc),
			decodeEmptyReq,
			api.EncodeResponse,
			opts...,
		), "list-pending-updates").ServeHTTP)
		r.Delete("/{version}", otelhttp.NewHandler(kithttp.NewServer(
			discardUpdatesEndpoint(svc),
			decodeVersionReq,
			api.EncodeResponse,
			opts...,
		), "discard-updates").ServeHTTP)
	})

	mux.Get("/sessions", otelhttp.NewHandler(kithttp.NewServer(
		listSessionsEndpoint(d),
		decodeEmptyReq,
		api.EncodeResponse,
		opts...,
	), "list-sessions").ServeHTTP)

	mux.Get("/telemetry", otelhttp.NewHandler(kithttp.NewServer(
		listTelemetryEndpoint(svc),
		decodeListReq,
		api.EncodeResponse,
		opts...,
	), "list-telemetry").ServeHTTP)

	if ws != nil {
		mux.Get("/ws", ws.ServeHTTP)
	}

	mux.Get("/health", supermq.Health("fedcoord", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEmptyReq(_ context.Context, _ *http.Request) (any, error) {
	return emptyReq{}, nil
}

func decodeHyperparamsReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return hyperparamsReq{params: params}, nil
}

func decodeVersionReq(_ context.Context, r *http.Request) (any, error) {
	version, err := strconv.ParseUint(chi.URLParam(r, versionKey), 10, 64)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return versionReq{version: version}, nil
}

func decodeListReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listReq{
		offset: o,
		limit:  l,
	}, nil
}
