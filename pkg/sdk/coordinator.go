package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	modelEndpoint       = "/model"
	hyperparamsEndpoint = "/hyperparams"
	updatesEndpoint     = "/updates"
	sessionsEndpoint    = "/sessions"
	telemetryEndpoint   = "/telemetry"
)

type Tensor struct {
	Values []float64 `json:"values"`
	Shape  []int     `json:"shape"`
	DType  string    `json:"dtype,omitempty"`
}

type Model struct {
	ModelVersion uint64         `json:"model_version"`
	Hyperparams  map[string]any `json:"hyperparams"`
	Vars         []Tensor       `json:"vars"`
}

type Bucket struct {
	ModelVersion uint64   `json:"model_version"`
	Count        int      `json:"count"`
	Eligible     bool     `json:"eligible"`
	Clients      []string `json:"clients"`
}

type Pending struct {
	CurrentVersion uint64   `json:"current_version"`
	Buckets        []Bucket `json:"buckets"`
}

type Session struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Uploads     uint64    `json:"uploads"`
	DataRecords uint64    `json:"data_records"`
	Queued      int       `json:"queued"`
}

type SessionPage struct {
	Total    int       `json:"total"`
	Sessions []Session `json:"sessions"`
}

type DataRecord struct {
	ID           string         `json:"id"`
	ClientID     string         `json:"client_id"`
	ModelVersion uint64         `json:"model_version"`
	Input        Tensor         `json:"input"`
	Target       Tensor         `json:"target"`
	Output       *Tensor        `json:"output,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type TelemetryPage struct {
	PageMetadata
	Total   uint64       `json:"total"`
	Records []DataRecord `json:"records"`
}

func (sdk *fedSDK) Model() (Model, error) {
	url := sdk.coordinatorURL + modelEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Model{}, err
	}

	var m Model
	if err := json.Unmarshal(body, &m); err != nil {
		return Model{}, err
	}

	return m, nil
}

func (sdk *fedSDK) SetHyperparams(params map[string]any) (map[string]any, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	url := sdk.coordinatorURL + hyperparamsEndpoint

	body, err := sdk.processRequest(http.MethodPut, url, data, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res struct {
		Hyperparams map[string]any `json:"hyperparams"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Hyperparams, nil
}

func (sdk *fedSDK) PendingUpdates() (Pending, error) {
	url := sdk.coordinatorURL + updatesEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Pending{}, err
	}

	var p Pending
	if err := json.Unmarshal(body, &p); err != nil {
		return Pending{}, err
	}

	return p, nil
}

func (sdk *fedSDK) DiscardUpdates(version uint64) (int, error) {
	url := fmt.Sprintf("%s%s/%d", sdk.coordinatorURL, updatesEndpoint, version)

	body, err := sdk.processRequest(http.MethodDelete, url, nil, http.StatusOK)
	if err != nil {
		return 0, err
	}

	var res struct {
		Discarded int `json:"discarded"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, err
	}

	return res.Discarded, nil
}

func (sdk *fedSDK) Sessions() (SessionPage, error) {
	url := sdk.coordinatorURL + sessionsEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return SessionPage{}, err
	}

	var s SessionPage
	if err := json.Unmarshal(body, &s); err != nil {
		return SessionPage{}, err
	}

	return s, nil
}

func (sdk *fedSDK) Telemetry(offset, limit uint64) (TelemetryPage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}
	url := sdk.coordinatorURL + telemetryEndpoint + query

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return TelemetryPage{}, err
	}

	var t TelemetryPage
	if err := json.Unmarshal(body, &t); err != nil {
		return TelemetryPage{}, err
	}

	return t, nil
}
