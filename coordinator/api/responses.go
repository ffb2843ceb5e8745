package api

import (
	"net/http"

	"github.com/absmach/fedcoord/dispatcher"
	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*modelRes)(nil)
	_ supermq.Response = (*hyperparamsRes)(nil)
	_ supermq.Response = (*pendingRes)(nil)
	_ supermq.Response = (*discardRes)(nil)
	_ supermq.Response = (*sessionsRes)(nil)
	_ supermq.Response = (*telemetryRes)(nil)
)

type modelRes struct {
	ModelVersion uint64             `json:"model_version"`
	Hyperparams  map[string]any     `json:"hyperparams"`
	Vars         []codec.TensorJSON `json:"vars"`
}

func (m modelRes) Code() int {
	return http.StatusOK
}

func (m modelRes) Headers() map[string]string {
	return map[string]string{}
}

func (m modelRes) Empty() bool {
	return false
}

type hyperparamsRes struct {
	Hyperparams map[string]any `json:"hyperparams"`
}

func (h hyperparamsRes) Code() int {
	return http.StatusOK
}

func (h hyperparamsRes) Headers() map[string]string {
	return map[string]string{}
}

func (h hyperparamsRes) Empty() bool {
	return false
}

type pendingRes struct {
	CurrentVersion uint64             `json:"current_version"`
	Buckets        []fl.PendingBucket `json:"buckets"`
}

func (p pendingRes) Code() int {
	return http.StatusOK
}

func (p pendingRes) Headers() map[string]string {
	return map[string]string{}
}

func (p pendingRes) Empty() bool {
	return false
}

type discardRes struct {
	Version   uint64 `json:"model_version"`
	Discarded int    `json:"discarded"`
}

func (d discardRes) Code() int {
	return http.StatusOK
}

func (d discardRes) Headers() map[string]string {
	return map[string]string{}
}

func (d discardRes) Empty() bool {
	return false
}

type sessionsRes struct {
	Total    int                  `json:"total"`
	Sessions []dispatcher.Session `json:"sessions"`
}

func (s sessionsRes) Code() int {
	return http.StatusOK
}

func (s sessionsRes) Headers() map[string]string {
	return map[string]string{}
}

func (s sessionsRes) Empty() bool {
	return false
}

type telemetryRes struct {
	fl.DataRecordPage
}

func (t telemetryRes) Code() int {
	return http.StatusOK
}

func (t telemetryRes) Headers() map[string]string {
	return map[string]string{}
}

func (t telemetryRes) Empty() bool {
	return false
}
