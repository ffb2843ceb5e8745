package api

import (
	"github.com/absmach/fedcoord/pkg/api"
	pkgerrors "github.com/absmach/fedcoord/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
)

type emptyReq struct{}

func (e *emptyReq) validate() error {
	return nil
}

type hyperparamsReq struct {
	params map[string]any
}

func (h *hyperparamsReq) validate() error {
	if h.params == nil {
		return pkgerrors.ErrInvalidData
	}
	for k := range h.params {
		if k == "" {
			return pkgerrors.ErrEmptyKey
		}
	}

	return nil
}

type versionReq struct {
	version uint64
}

func (v *versionReq) validate() error {
	return nil
}

type listReq struct {
	offset, limit uint64
}

func (l *listReq) validate() error {
	if l.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}
