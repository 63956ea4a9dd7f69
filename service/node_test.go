package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/orchestrate"
	"github.com/nodemesh/datashare/provider/memory"
)

// newTestNodeAPI wires a node API to a live registry API over HTTP, with
// the in-process provider backing both sides of the workflow.
func newTestNodeAPI(t *testing.T) (*NodeAPI, *httptest.Server) {
	t.Helper()

	regAPI := newTestRegistryAPI(t)
	regSrv := httptest.NewServer(regAPI.Handler())
	t.Cleanup(regSrv.Close)

	registerNode(t, regSrv, models.ShareNode{
		NodeID: "node-b", URL: "https://b.example:8080",
		TenantID: "tenant-b", Identity: "identity-b",
	})

	regClient, err := client.New(client.Config{BaseURL: regSrv.URL, Logger: testLogger()})
	require.NoError(t, err)

	cfg := &config.Node{
		HTTPBinding: "127.0.0.1:0",
		Identity: config.Identity{
			NodeID: "node-a", Name: "Node A", URL: "https://a.example:8080",
			TenantID: "tenant-a", Identity: "identity-a",
		},
		RegistryURLs:  []string{regSrv.URL},
		RefreshPeriod: time.Minute,
		NodeCacheTTL:  time.Minute,
		Consume: config.ConsumeTarget{
			ResourceGroupName:  "rg-dest",
			StorageAccountName: "stdest",
			ContainerName:      "imports",
			FolderFormat:       "incoming/{node_id}",
			FileNameFormat:     "data-{invitation_id}.csv",
		},
	}

	orch := orchestrate.New(orchestrate.Config{
		Logger:     testLogger(),
		Node:       cfg,
		Provider:   memory.New(testLogger()),
		Registries: []*client.Client{regClient},
	})
	t.Cleanup(orch.Stop)

	return NewNodeAPI(context.Background(), testLogger(), cfg, orch), regSrv
}

func postShare(t *testing.T, srv *httptest.Server, req models.ShareRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/share", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func testShareRequest() models.ShareRequest {
	return models.ShareRequest{
		ProviderNodeID: "node-a",
		ConsumerNodeID: "node-b",
		Dataset: models.Dataset{
			ResourceGroupName:  "rg-data",
			StorageAccountName: "stdata",
			ContainerName:      "exports",
			FolderPath:         "daily",
			FileName:           "report.csv",
		},
	}
}

func TestNodeAPI_Share(t *testing.T) {
	api, _ := newTestNodeAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	t.Run("creates an invitation", func(t *testing.T) {
		resp := postShare(t, srv, testShareRequest())
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ShareResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.NotEmpty(t, out.InvitationID)
		assert.Equal(t, "node-a", out.ProviderNodeID)
		assert.Equal(t, "node-b", out.ConsumerNodeID)
		assert.Equal(t, testShareRequest().Dataset, out.Dataset)
		assert.Equal(t, models.StatusPending, out.Status.Status)
		assert.Equal(t, models.CodeNoError, out.Error.Code)
	})

	t.Run("repeat share returns the same invitation", func(t *testing.T) {
		first := postShare(t, srv, testShareRequest())
		defer first.Body.Close()
		var a models.ShareResponse
		require.NoError(t, json.NewDecoder(first.Body).Decode(&a))

		second := postShare(t, srv, testShareRequest())
		defer second.Body.Close()
		var b models.ShareResponse
		require.NoError(t, json.NewDecoder(second.Body).Decode(&b))

		assert.Equal(t, a.InvitationID, b.InvitationID)
	})

	t.Run("unknown consumer node is a 404", func(t *testing.T) {
		req := testShareRequest()
		req.ConsumerNodeID = "node-z"
		resp := postShare(t, srv, req)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing node ids are a 400", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/share", "application/json", bytes.NewReader([]byte(`{}`)))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestNodeAPI_ShareStatus(t *testing.T) {
	api, _ := newTestNodeAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	query := "?provider_node_id=node-a&consumer_node_id=node-b" +
		"&resource_group_name=rg-data&storage_account_name=stdata" +
		"&container_name=exports&folder_path=daily&file_name=report.csv"

	t.Run("before any share", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/share" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("after share", func(t *testing.T) {
		created := postShare(t, srv, testShareRequest())
		defer created.Body.Close()
		var shared models.ShareResponse
		require.NoError(t, json.NewDecoder(created.Body).Decode(&shared))

		resp, err := http.Get(srv.URL + "/share" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ShareResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, shared.InvitationID, out.InvitationID)
		assert.Equal(t, models.StatusPending, out.Status.Status)
	})
}

func TestNodeAPI_Consume(t *testing.T) {
	api, _ := newTestNodeAPI(t)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	created := postShare(t, srv, testShareRequest())
	defer created.Body.Close()
	var shared models.ShareResponse
	require.NoError(t, json.NewDecoder(created.Body).Decode(&shared))

	query := "?provider_node_id=node-a&consumer_node_id=node-b&invitation_id=" + shared.InvitationID

	t.Run("first consume launches a run", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/consume" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ConsumeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, shared.InvitationID, out.InvitationID)
		assert.Equal(t, models.StatusQueued, out.Status.Status)

		// The destination comes from the configured templates; {node_id}
		// expands to the provider's id.
		assert.Equal(t, "imports", out.Dataset.ContainerName)
		assert.Equal(t, "incoming/node-a", out.Dataset.FolderPath)
		assert.Equal(t, "data-"+shared.InvitationID+".csv", out.Dataset.FileName)
	})

	t.Run("repeat consume reports the same run", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/consume" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ConsumeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, models.StatusQueued, out.Status.Status)
	})

	t.Run("consumeshare is an alias of consume", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/consumeshare" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out models.ConsumeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, shared.InvitationID, out.InvitationID)
	})

	t.Run("missing invitation id is a 400", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/consume?provider_node_id=node-a&consumer_node_id=node-b")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
