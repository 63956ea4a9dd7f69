package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nodemesh/datashare/models"
)

// --- Registry operations ---

// Register upserts the node's record on the registry. The registry echoes
// the registration back.
func (c *Client) Register(ctx context.Context, node models.ShareNode) (*models.ShareNode, error) {
	var out models.ShareNode
	if err := c.doRequest(ctx, http.MethodPost, "/register", nil, node, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nodes lists every online node's public record.
func (c *Client) Nodes(ctx context.Context) ([]models.Node, error) {
	var out []models.Node
	if err := c.doIdempotent(ctx, http.MethodGet, "/nodes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Node resolves one node id to its public record. Unknown and offline
// nodes both return ErrNotFound.
func (c *Client) Node(ctx context.Context, nodeID string) (*models.Node, error) {
	var out models.Node
	if err := c.doIdempotent(ctx, http.MethodGet, "/nodes/"+url.PathEscape(nodeID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Share-node operations ---

// Share triggers the sharing workflow on the provider node.
func (c *Client) Share(ctx context.Context, req models.ShareRequest) (*models.ShareResponse, error) {
	var out models.ShareResponse
	if err := c.doRequest(ctx, http.MethodPost, "/share", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ShareStatus polls the invitation state for a share request.
func (c *Client) ShareStatus(ctx context.Context, req models.ShareRequest) (*models.ShareResponse, error) {
	var out models.ShareResponse
	if err := c.doIdempotent(ctx, http.MethodGet, "/share", shareQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Consume triggers (or polls) consumption on the consumer node.
func (c *Client) Consume(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	var out models.ConsumeResponse
	if err := c.doIdempotent(ctx, http.MethodGet, "/consume", consumeQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsumeShare is the forwarding alias of Consume, invoked by a registry
// relaying another node's request.
func (c *Client) ConsumeShare(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	var out models.ConsumeResponse
	if err := c.doIdempotent(ctx, http.MethodGet, "/consumeshare", consumeQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ShareConsume asks the service to reach the consumer node through the
// registry and report the consumption status there.
func (c *Client) ShareConsume(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	var out models.ConsumeResponse
	if err := c.doIdempotent(ctx, http.MethodGet, "/shareconsume", consumeQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the remote service version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out string
	if err := c.doIdempotent(ctx, http.MethodGet, "/version", nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Time returns the remote service clock reading.
func (c *Client) Time(ctx context.Context) (string, error) {
	var out string
	if err := c.doIdempotent(ctx, http.MethodGet, "/time", nil, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func shareQuery(req models.ShareRequest) map[string]string {
	return map[string]string{
		"provider_node_id":     req.ProviderNodeID,
		"consumer_node_id":     req.ConsumerNodeID,
		"resource_group_name":  req.Dataset.ResourceGroupName,
		"storage_account_name": req.Dataset.StorageAccountName,
		"container_name":       req.Dataset.ContainerName,
		"folder_path":          req.Dataset.FolderPath,
		"file_name":            req.Dataset.FileName,
	}
}

func consumeQuery(req models.ConsumeRequest) map[string]string {
	return map[string]string{
		"provider_node_id": req.ProviderNodeID,
		"consumer_node_id": req.ConsumerNodeID,
		"invitation_id":    req.InvitationID,
	}
}
