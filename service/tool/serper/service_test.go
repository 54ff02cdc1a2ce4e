package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caseflow/caseflow/service/tool"
	"github.com/stretchr/testify/assert"
)

func TestService_Call(t *testing.T) {
	var gotKey string
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req["q"]
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"organic": []map[string]string{
				{"title": "HMRC IHT rates", "snippet": "Nil-rate band £325,000", "link": "https://gov.uk/iht"},
				{"title": "Probate fees", "snippet": "£300 application fee", "link": "https://gov.uk/probate"},
			},
			"answerBox": map[string]string{"answer": "40% above the threshold"},
		})
	}))
	defer server.Close()

	svc := New("test-key", WithEndpoint(server.URL))
	method, err := svc.Method(tool.Method)
	assert.NoError(t, err)

	output := &tool.Output{}
	err = method(context.Background(), &tool.Input{Query: "uk inheritance tax rate"}, output)
	assert.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "uk inheritance tax rate", gotQuery)
	assert.Contains(t, output.Content, "Answer: 40% above the threshold")
	assert.Contains(t, output.Content, "HMRC IHT rates")
	assert.Contains(t, output.Content, "https://gov.uk/probate")
}

func TestService_Call_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	testCases := []struct {
		name  string
		svc   *Service
		query string
	}{
		{name: "missing key", svc: New("", WithEndpoint(server.URL)), query: "anything"},
		{name: "empty query", svc: New("key", WithEndpoint(server.URL)), query: ""},
		{name: "upstream failure", svc: New("key", WithEndpoint(server.URL)), query: "anything"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			method, _ := tc.svc.Method(tool.Method)
			err := method(context.Background(), &tool.Input{Query: tc.query}, &tool.Output{})
			assert.Error(t, err)
		})
	}
}

func TestService_Call_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"organic": []map[string]string{
				{"title": "one"}, {"title": "two"}, {"title": "three"},
			},
		})
	}))
	defer server.Close()

	svc := New("key", WithEndpoint(server.URL), WithMaxResults(2))
	method, _ := svc.Method(tool.Method)
	output := &tool.Output{}
	assert.NoError(t, method(context.Background(), &tool.Input{Query: "q"}, output))
	assert.Contains(t, output.Content, "one")
	assert.Contains(t, output.Content, "two")
	assert.NotContains(t, output.Content, "three")
}
