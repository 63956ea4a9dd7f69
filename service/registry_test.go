package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistryAPI(t *testing.T) *RegistryAPI {
	t.Helper()

	dir, err := os.MkdirTemp(os.TempDir(), "registry_api_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := registry.NewStore(registry.StoreConfig{
		Logger:    testLogger(),
		Directory: dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New(registry.Config{
		Logger:        testLogger(),
		Store:         store,
		RefreshPeriod: time.Minute,
	})

	cfg := &config.Registry{
		HTTPBinding:   "127.0.0.1:0",
		RefreshPeriod: time.Minute,
	}
	return NewRegistryAPI(context.Background(), testLogger(), cfg, reg)
}

func registerNode(t *testing.T, srv *httptest.Server, node models.ShareNode) {
	t.Helper()
	body, err := json.Marshal(node)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegistryAPI_Register(t *testing.T) {
	api := newTestRegistryAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	t.Run("echoes the registration", func(t *testing.T) {
		node := models.ShareNode{
			NodeID:   "node-a",
			URL:      "https://a.example:8080",
			Name:     "Node A",
			TenantID: "tenant-a",
			Identity: "identity-a",
		}
		body, err := json.Marshal(node)
		require.NoError(t, err)

		resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var echoed models.ShareNode
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&echoed))
		assert.Equal(t, node, echoed)
	})

	t.Run("rejects a payload without node_id", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/register", "application/json", bytes.NewReader([]byte(`{"url":"https://x"}`)))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRegistryAPI_Nodes(t *testing.T) {
	api := newTestRegistryAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	registerNode(t, srv, models.ShareNode{
		NodeID: "node-a", URL: "https://a.example:8080",
		TenantID: "tenant-a", Identity: "identity-a",
	})

	t.Run("lists the public projection", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nodes")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var nodes []models.Node
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&nodes))
		require.Len(t, nodes, 1)
		assert.Equal(t, "node-a", nodes[0].NodeID)
		assert.Equal(t, "tenant-a", nodes[0].TenantID)
	})

	t.Run("known node by id", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nodes/node-a")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var node models.Node
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&node))
		assert.Equal(t, "identity-a", node.Identity)
	})

	t.Run("unknown node is a structured 404", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nodes/node-z")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		var detail models.Error
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
		assert.Equal(t, http.StatusNotFound, detail.Code)
		assert.Equal(t, registryErrorSource, detail.Source)
		assert.Contains(t, detail.Message, "node-z")
	})
}

type stubForwarder struct {
	resp *models.ConsumeResponse
	err  error

	gotReq models.ConsumeRequest
}

func (s *stubForwarder) ConsumeShare(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	s.gotReq = req
	return s.resp, s.err
}

func TestRegistryAPI_ShareConsume(t *testing.T) {
	api := newTestRegistryAPI(t)

	forwarder := &stubForwarder{
		resp: &models.ConsumeResponse{
			InvitationID:   "inv-1",
			ProviderNodeID: "node-a",
			ConsumerNodeID: "node-b",
			Status:         models.StatusDetails{Status: models.StatusQueued},
		},
	}
	var dialedURL string
	api.dial = func(nodeURL string) (consumeForwarder, error) {
		dialedURL = nodeURL
		return forwarder, nil
	}

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	registerNode(t, srv, models.ShareNode{
		NodeID: "node-b", URL: "https://b.example:8080",
		TenantID: "tenant-b", Identity: "identity-b",
	})

	t.Run("relays to the consumer node", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/shareconsume?provider_node_id=node-a&consumer_node_id=node-b&invitation_id=inv-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ConsumeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "inv-1", out.InvitationID)
		assert.Equal(t, models.StatusQueued, out.Status.Status)

		assert.Equal(t, "https://b.example:8080", dialedURL)
		assert.Equal(t, "node-b", forwarder.gotReq.ConsumerNodeID)
	})

	t.Run("unknown consumer node is a 404", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/shareconsume?provider_node_id=node-a&consumer_node_id=node-z&invitation_id=inv-1")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing parameters are a 400", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/shareconsume?provider_node_id=node-a")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRegistryAPI_VersionAndTime(t *testing.T) {
	api := newTestRegistryAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	t.Run("version", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/version")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var v string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
		assert.Equal(t, Version, v)
	})

	t.Run("time", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/time")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ts string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&ts))
		_, err = time.Parse("2006/01/02-15:04:05", ts)
		assert.NoError(t, err)
	})
}
