package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const CTJSON string = "application/json"

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// Model gets the current model version, its hyperparameters and weights.
	//
	// example:
	//  model, _ := sdk.Model()
	//  fmt.Println(model.ModelVersion)
	Model() (Model, error)

	// SetHyperparams replaces the hyperparameters and pushes them to clients.
	//
	// example:
	//  params, _ := sdk.SetHyperparams(map[string]any{"learning_rate": 0.01})
	//  fmt.Println(params)
	SetHyperparams(params map[string]any) (map[string]any, error)

	// PendingUpdates lists buffered updates per model version.
	//
	// example:
	//  pending, _ := sdk.PendingUpdates()
	//  fmt.Println(pending.Buckets)
	PendingUpdates() (Pending, error)

	// DiscardUpdates drops the buffered updates for a version.
	//
	// example:
	//  n, _ := sdk.DiscardUpdates(3)
	//  fmt.Println(n)
	DiscardUpdates(version uint64) (int, error)

	// Sessions lists connected clients.
	//
	// example:
	//  sessions, _ := sdk.Sessions()
	//  fmt.Println(sessions.Total)
	Sessions() (SessionPage, error)

	// Telemetry lists stored client data records.
	//
	// example:
	//  page, _ := sdk.Telemetry(0, 10)
	//  fmt.Println(page.Records)
	Telemetry(offset, limit uint64) (TelemetryPage, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Err string `json:"error"`
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		if json.Unmarshal(body, &e) == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("unexpected response code %d: %s", resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
