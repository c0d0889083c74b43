package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/grid"
)

type fakeDispatcher struct {
	got     []command.Command
	outcome command.Outcome
}

func (f *fakeDispatcher) Dispatch(cmd command.Command) command.Outcome {
	f.got = append(f.got, cmd)
	if f.outcome == "" {
		return command.Delivered
	}
	return f.outcome
}

const testSecret = "test-secret"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func deployEndpoint(target string) Config {
	return Config{
		Listen: "127.0.0.1:0",
		Endpoints: []EndpointConfig{{
			Path:            "/hooks/deploy",
			Kind:            command.KindRow,
			Name:            command.Update,
			Target:          target,
			Secret:          testSecret,
			SignatureHeader: "X-Hub-Signature-256",
		}},
	}
}

func signedRequest(path string, body []byte) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256="+sign(body, testSecret))
	return req
}

func TestHandleWebhookDispatches(t *testing.T) {
	body := []byte(`{"status":"deployed"}`)
	d := &fakeDispatcher{}
	server := New(deployEndpoint("r1"), d, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/deploy", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.got, 1)
	assert.Equal(t, command.KindRow, d.got[0].Kind)
	assert.Equal(t, command.Update, d.got[0].Name)
	assert.Equal(t, "r1", d.got[0].TargetID)
	assert.Empty(t, d.got[0].Origin)
	assert.JSONEq(t, string(body), string(d.got[0].Payload.(json.RawMessage)))

	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, TriggerResponse{Command: "row/update", Target: "r1", Outcome: command.Delivered}, resp)
}

func TestHandleWebhookTargetFromQuery(t *testing.T) {
	d := &fakeDispatcher{outcome: command.Blocked}
	server := New(deployEndpoint(""), d, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/deploy?target=r9", []byte(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.got, 1)
	assert.Equal(t, "r9", d.got[0].TargetID)

	var resp TriggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, command.Blocked, resp.Outcome)

	rec = httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/deploy", []byte(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, d.got, 1)
}

func TestHandleWebhookRejectsNonJSON(t *testing.T) {
	d := &fakeDispatcher{}
	server := New(deployEndpoint("r1"), d, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/deploy", []byte("status=deployed")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, d.got)
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	d := &fakeDispatcher{}
	server := New(deployEndpoint("r1"), d, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/hooks/deploy", strings.NewReader(`{}`))
	req.Header.Set("X-Hub-Signature-256", "sha256=0000000000000000000000000000000000000000000000000000000000000000")
	rec := httptest.NewRecorder()
	server.handleWebhook(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "forbidden", resp.Error)
	assert.Empty(t, d.got)
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	d := &fakeDispatcher{}
	server := New(deployEndpoint("r1"), d, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, httptest.NewRequest(http.MethodPost, "/hooks/deploy", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, d.got)
}

func TestHandleWebhookBodyTooLarge(t *testing.T) {
	cfg := deployEndpoint("r1")
	cfg.Endpoints[0].MaxBodySize = 16
	server := New(cfg, &fakeDispatcher{}, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/deploy", []byte(`{"status":"deployed everywhere"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleWebhookUnknownPath(t *testing.T) {
	server := New(deployEndpoint("r1"), &fakeDispatcher{}, quietLogger())

	rec := httptest.NewRecorder()
	server.handleWebhook(rec, signedRequest("/hooks/unknown", []byte(`{}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewAppliesDefaultBodySize(t *testing.T) {
	server := New(deployEndpoint("r1"), &fakeDispatcher{}, quietLogger())
	assert.Equal(t, int64(DefaultMaxBodySize), server.byPath["/hooks/deploy"].MaxBodySize)
}

func TestWebhookUpdatesGridRow(t *testing.T) {
	g, err := grid.New[json.RawMessage](grid.Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	rowID, err := g.Insert(g.TableSegment(), json.RawMessage(`{"status":"pending"}`), command.Bottom)
	require.NoError(t, err)

	srv := httptest.NewServer(New(deployEndpoint(rowID), g, quietLogger()).setupRoutes())
	t.Cleanup(srv.Close)

	body := []byte(`{"status":"deployed"}`)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/hooks/deploy", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Hub-Signature-256", "sha256="+sign(body, testSecret))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr TriggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.True(t, tr.Outcome.Accepted(), "outcome %s", tr.Outcome)

	row, ok := g.Row(rowID)
	require.True(t, ok)
	assert.JSONEq(t, string(body), string(row.Data))

	// A row that does not exist is reported, not hidden.
	srv2 := httptest.NewServer(New(deployEndpoint("ghost"), g, quietLogger()).setupRoutes())
	t.Cleanup(srv2.Close)
	req, err = http.NewRequest(http.MethodPost, srv2.URL+"/hooks/deploy", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Hub-Signature-256", sign(body, testSecret))
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&tr))
	assert.Equal(t, command.Rejected, tr.Outcome)
}
