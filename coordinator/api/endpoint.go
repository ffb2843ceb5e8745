package api

import (
	"context"
	"errors"

	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/pkg/codec"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func getModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return modelRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		snap := svc.Snapshot(ctx)
		vars, err := codec.ToJSONAll(snap.Vars)
		if err != nil {
			return modelRes{}, err
		}

		return modelRes{
			ModelVersion: snap.Version,
			Hyperparams:  svc.Hyperparams(ctx),
			Vars:         vars,
		}, nil
	}
}

func setHyperparamsEndpoint(svc coordinator.Service, d Dispatcher) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(hyperparamsReq)
		if !ok {
			return hyperparamsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return hyperparamsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := d.SetHyperparams(ctx, req.params); err != nil {
			return hyperparamsRes{}, err
		}

		return hyperparamsRes{
			Hyperparams: svc.Hyperparams(ctx),
		}, nil
	}
}

func pendingUpdatesEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return pendingRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return pendingRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		buckets, err := svc.PendingUpdates(ctx)
		if err != nil {
			return pendingRes{}, err
		}

		return pendingRes{
			CurrentVersion: svc.CurrentVersion(ctx),
			Buckets:        buckets,
		}, nil
	}
}

func discardUpdatesEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(versionReq)
		if !ok {
			return discardRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return discardRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		n, err := svc.DiscardUpdates(ctx, req.version)
		if err != nil {
			return discardRes{}, err
		}

		return discardRes{
			Version:   req.version,
			Discarded: n,
		}, nil
	}
}

func listSessionsEndpoint(d Dispatcher) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(emptyReq)
		if !ok {
			return sessionsRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return sessionsRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		sessions := d.Sessions(ctx)

		return sessionsRes{
			Total:    len(sessions),
			Sessions: sessions,
		}, nil
	}
}

func listTelemetryEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listReq)
		if !ok {
			return telemetryRes{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return telemetryRes{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListTelemetry(ctx, req.offset, req.limit)
		if err != nil {
			return telemetryRes{}, err
		}

		return telemetryRes{
			DataRecordPage: page,
		}, nil
	}
}
