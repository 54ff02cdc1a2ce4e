package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/service/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedLLM struct{}

func (c *cannedLLM) Generate(_ context.Context, request *llm.Request) (*llm.Response, error) {
	return &llm.Response{Content: "canned finding", Model: request.Model}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	svc, err := caseflow.New(caseflow.WithLLMClient(&cannedLLM{}))
	require.NoError(t, err)
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Shutdown(ctx) })

	ts := httptest.NewServer(New(svc).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func validIntake() map[string]interface{} {
	return map[string]interface{}{
		"clientName":   "Jordan Hale",
		"clientEmail":  "jordan@example.com",
		"deceasedName": "Alex Hale",
		"estateValue":  750000,
		"executorName": "Jordan Hale",
	}
}

func TestServer_CaseLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/cases/probate", validIntake())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted struct {
		Success       bool     `json:"success"`
		CaseID        string   `json:"caseId"`
		Status        string   `json:"status"`
		EstimatedTime string   `json:"estimatedTime"`
		AgentsWorking []string `json:"agentsWorking"`
	}
	decode(t, resp, &submitted)
	assert.True(t, submitted.Success)
	assert.Contains(t, submitted.CaseID, "PROB_")
	assert.Equal(t, "processing", submitted.Status)
	assert.NotEmpty(t, submitted.EstimatedTime)
	assert.Len(t, submitted.AgentsWorking, 5)

	statusURL := fmt.Sprintf("%s/api/v1/cases/%s/status", ts.URL, submitted.CaseID)
	resultsURL := fmt.Sprintf("%s/api/v1/cases/%s/results", ts.URL, submitted.CaseID)

	deadline := time.Now().Add(30 * time.Second)
	for {
		resp, err := http.Get(statusURL)
		require.NoError(t, err)
		var status struct {
			Status          string `json:"status"`
			AgentsTotal     int    `json:"agentsTotal"`
			AgentsCompleted int    `json:"agentsCompleted"`
		}
		decode(t, resp, &status)
		if status.Status == "completed" {
			assert.Equal(t, status.AgentsTotal, status.AgentsCompleted)
			break
		}
		require.False(t, time.Now().After(deadline), "case did not complete in time")
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := http.Get(resultsURL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var report struct {
		Summary  string            `json:"summary"`
		Sections map[string]string `json:"sections"`
		IHT      *struct {
			PotentialTax float64 `json:"potentialTax"`
		} `json:"inheritanceTax"`
	}
	decode(t, resp, &report)
	assert.NotEmpty(t, report.Summary)
	assert.Contains(t, report.Sections, "tax_assessment")
	if assert.NotNil(t, report.IHT) {
		assert.Equal(t, 100000.0, report.IHT.PotentialTax)
	}

	resp, err = http.Get(ts.URL + "/api/v1/cases?status=completed")
	require.NoError(t, err)
	var listed struct {
		Cases []map[string]interface{} `json:"cases"`
	}
	decode(t, resp, &listed)
	assert.Len(t, listed.Cases, 1)
}

func TestServer_Errors(t *testing.T) {
	ts := newTestServer(t)

	// Unknown case type.
	resp := postJSON(t, ts.URL+"/api/v1/cases/conveyancing", validIntake())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Invalid intake.
	intake := validIntake()
	intake["clientEmail"] = "not-an-email"
	resp = postJSON(t, ts.URL+"/api/v1/cases/probate", intake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown case ID.
	resp, err := http.Get(ts.URL + "/api/v1/cases/PROB_UNKNOWN/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/cases/PROB_UNKNOWN/results")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var banner struct {
		Service string `json:"service"`
	}
	decode(t, resp, &banner)
	assert.Equal(t, "caseflow", banner.Service)
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t)

	request, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/cases/probate", nil)
	require.NoError(t, err)
	request.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()

	request, err = http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/cases/probate", nil)
	require.NoError(t, err)
	request.Header.Set("Origin", "http://evil.example.com")
	resp, err = http.DefaultClient.Do(request)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()
}
