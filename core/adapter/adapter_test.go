package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"review-gateway/core/rotation"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func testConfig(endpoints ...string) ClientConfig {
	logger := quietLogger()
	return ClientConfig{
		Endpoints: endpoints,
		Logger:    logger,
		Rotator:   rotation.NewKeyRotator(rotation.NewMemoryIndexStore(), logger, nil),
	}
}

func testRequest(model string) ReviewRequest {
	return ReviewRequest{
		Model:        model,
		SystemPrompt: "You are a strict reviewer.",
		Question:     "What is the refund window?",
		Answer:       "30 days.",
	}
}

func singleKey(name string) rotation.KeyPool {
	return rotation.KeyPool{Name: name, Keys: []string{"sk-test-0001"}}
}

// decodeBody 读取请求体为通用 map
func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func asReviewError(t *testing.T, err error) *ReviewError {
	t.Helper()
	var rerr *ReviewError
	require.True(t, errors.As(err, &rerr), "expected *ReviewError, got %T", err)
	return rerr
}

func allClients(cfg ClientConfig) []ReviewClient {
	return []ReviewClient{
		NewAnthropicClient(cfg),
		NewOpenRouterClient(cfg, "", ""),
		NewStraicoClient(cfg),
	}
}

func TestBuildUserPrompt(t *testing.T) {
	assert.Equal(t, "User question:\nQ\n\nHumata answer:\nA", BuildUserPrompt("Q", "A"))
}

func TestBodySnippet(t *testing.T) {
	html := "<html><body><h1>502   Bad\n\nGateway</h1></body></html>"
	assert.Equal(t, "502 Bad Gateway", bodySnippet([]byte(html)))

	long := strings.Repeat("é", 800)
	assert.Equal(t, maxSnippetRunes, len([]rune(bodySnippet([]byte(long)))))
}

func TestReview_ConfigurationErrorsSkipNetwork(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer ts.Close()

	ctx := context.Background()
	for _, client := range allClients(testConfig(ts.URL)) {
		t.Run(client.Name()+"/empty_pool", func(t *testing.T) {
			_, err := client.Review(ctx, rotation.KeyPool{Name: client.Name(), Keys: []string{"  ", ""}}, testRequest("m"))
			rerr := asReviewError(t, err)
			assert.True(t, rerr.IsConfiguration())
			assert.Equal(t, KindConfiguration, rerr.Kind)
			assert.Equal(t, http.StatusInternalServerError, rerr.HTTPStatus())
		})
		t.Run(client.Name()+"/empty_model", func(t *testing.T) {
			_, err := client.Review(ctx, singleKey(client.Name()), testRequest("  "))
			rerr := asReviewError(t, err)
			assert.True(t, rerr.IsConfiguration())
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestReview_WhitespaceContentIsAPIError(t *testing.T) {
	bodies := map[string]string{
		ProviderAnthropic:  `{"content":[{"type":"text","text":"   \n "}]}`,
		ProviderOpenRouter: `{"choices":[{"message":{"role":"assistant","content":"  \t"}}]}`,
		ProviderStraico:    `{"choices":[{"message":{"content":[{"type":"text","text":" "}]}}]}`,
	}

	for provider, body := range bodies {
		body := body
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, body)
		}))

		var client ReviewClient
		switch provider {
		case ProviderAnthropic:
			client = NewAnthropicClient(testConfig(ts.URL))
		case ProviderOpenRouter:
			client = NewOpenRouterClient(testConfig(ts.URL), "", "")
		case ProviderStraico:
			client = NewStraicoClient(testConfig(ts.URL))
		}

		_, err := client.Review(context.Background(), singleKey(provider), testRequest("m"))
		rerr := asReviewError(t, err)
		assert.Equal(t, APIErrorKind(provider), rerr.Kind, provider)
		assert.Equal(t, http.StatusBadGateway, rerr.HTTPStatus(), provider)
		assert.Equal(t, SafeMessage, rerr.SafeMessage())
		ts.Close()
	}
}

func TestPostJSON_NotFoundTriesNextCandidate(t *testing.T) {
	var first, second int32
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&first, 1)
		writeJSON(w, http.StatusMethodNotAllowed, `{"error":"method"}`)
	}))
	defer missing.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&second, 1)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"fine"}}]}`)
	}))
	defer ok.Close()

	client := NewOpenRouterClient(testConfig(missing.URL, ok.URL), "", "")
	text, err := client.Review(context.Background(), singleKey("openrouter"), testRequest("m"))
	require.NoError(t, err)
	assert.Equal(t, "fine", text)
	assert.Equal(t, int32(1), first)
	assert.Equal(t, int32(1), second)
}

func TestPostJSON_AllCandidatesMissing(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{}`)
	}))
	defer missing.Close()

	client := NewStraicoClient(testConfig(missing.URL, missing.URL+"/v1"))
	_, err := client.Review(context.Background(), singleKey("straico"), testRequest("m"))
	rerr := asReviewError(t, err)
	assert.Equal(t, KindStraicoAPI, rerr.Kind)
	assert.Equal(t, http.StatusNotFound, rerr.HTTPStatus())
}

func TestPostJSON_OtherStatusStopsCandidates(t *testing.T) {
	var second int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"bad"}`)
	}))
	defer broken.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&second, 1)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"fine"}}]}`)
	}))
	defer ok.Close()

	client := NewOpenRouterClient(testConfig(broken.URL, ok.URL), "", "")
	_, err := client.Review(context.Background(), singleKey("openrouter"), testRequest("m"))
	rerr := asReviewError(t, err)
	assert.Equal(t, http.StatusBadRequest, rerr.HTTPStatus())
	assert.Equal(t, int32(0), second)
}

func TestPostJSON_TransportErrorIsTerminal(t *testing.T) {
	var second int32
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&second, 1)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"fine"}}]}`)
	}))
	defer ok.Close()

	client := NewOpenRouterClient(testConfig(deadURL, ok.URL), "", "")
	_, err := client.Review(context.Background(), singleKey("openrouter"), testRequest("m"))
	rerr := asReviewError(t, err)
	assert.True(t, rerr.IsTransport())
	assert.Equal(t, http.StatusBadGateway, rerr.HTTPStatus())
	assert.Equal(t, int32(0), second)
}

func TestPayloadHookRewritesBody(t *testing.T) {
	var seen map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = decodeBody(t, r)
		writeJSON(w, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.PayloadHook = func(p map[string]interface{}) map[string]interface{} {
		p["temperature"] = 0.1
		return p
	}
	_, err := NewOpenRouterClient(cfg, "", "").Review(context.Background(), singleKey("openrouter"), testRequest("m"))
	require.NoError(t, err)
	assert.Equal(t, 0.1, seen["temperature"])
	assert.Equal(t, "m", seen["model"])
}

func TestDiagnosticsLogsSnippetOnlyWhenEnabled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html><b>upstream   exploded</b></html>")
	}))
	defer ts.Close()

	for _, enabled := range []bool{false, true} {
		logger, hook := test.NewNullLogger()
		cfg := ClientConfig{
			Endpoints:   []string{ts.URL},
			Logger:      logger,
			Diagnostics: func() bool { return enabled },
			Rotator:     rotation.NewKeyRotator(rotation.NewMemoryIndexStore(), logger, nil),
		}
		_, err := NewStraicoClient(cfg).Review(context.Background(), singleKey("straico"), testRequest("m"))
		require.Error(t, err)

		var diag *logrus.Entry
		for _, e := range hook.AllEntries() {
			if e.Message == "Upstream review request failed" {
				diag = e
			}
		}
		if !enabled {
			assert.Nil(t, diag)
			continue
		}
		require.NotNil(t, diag)
		assert.Equal(t, ts.URL, diag.Data["endpoint"])
		assert.Equal(t, http.StatusInternalServerError, diag.Data["status"])
		assert.Equal(t, "upstream exploded", diag.Data["body"])
	}
}

func TestEndpointsDefaultWhenBlank(t *testing.T) {
	client := NewAnthropicClient(ClientConfig{Endpoints: []string{" ", ""}, Logger: quietLogger()})
	assert.Equal(t, []string{DefaultAnthropicEndpoint}, client.Endpoints())

	client2 := NewStraicoClient(ClientConfig{Endpoints: []string{" http://a ", "http://b"}, Logger: quietLogger()})
	assert.Equal(t, []string{"http://a", "http://b"}, client2.Endpoints())
}
