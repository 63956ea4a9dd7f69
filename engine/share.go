// Package engine drives the two sides of the sharing workflow against the
// external provider. The sharing engine runs on the provider node and
// works get-or-create per derived name, so retries converge on the same
// provider-side resources instead of duplicating them. The consuming
// engine runs on the consumer node and pivots on one question: does a
// synchronization run already exist for the derived subscription name.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/naming"
	"github.com/nodemesh/datashare/provider"
)

// ErrInvitationNotFound reports a status query for an invitation that was
// never created. It maps to a 404 at the HTTP boundary.
var ErrInvitationNotFound = errors.New("invitation not found")

// ShareParams identifies one sharing workflow on the provider side.
// Tenant and identity belong to the consumer node and come from the
// registry.
type ShareParams struct {
	ProviderNodeID string
	ConsumerNodeID string
	TenantID       string
	Identity       string
	Dataset        models.Dataset
}

// ShareEngine ensures the share, dataset attachment and invitation exist
// for a workflow tuple and reports invitation status.
type ShareEngine struct {
	logger *slog.Logger
	client provider.Client
}

func NewShareEngine(logger *slog.Logger, client provider.Client) *ShareEngine {
	return &ShareEngine{
		logger: logger.With("component", "share-engine"),
		client: client,
	}
}

// Share runs the full provider-side sequence: ensure the share exists,
// attach the dataset, create the invitation. Re-issuing the same request
// returns the existing invitation; nothing is created twice.
func (e *ShareEngine) Share(ctx context.Context, p ShareParams) (*models.ShareResponse, error) {
	names := naming.ForShare(p.ProviderNodeID, p.ConsumerNodeID, naming.DatasetHash(p.Dataset), p.TenantID, p.Identity)

	share, err := e.ensureShare(ctx, names.Share)
	if err != nil {
		return nil, fmt.Errorf("ensure share %q: %w", names.Share, err)
	}

	if err := e.attachDataset(ctx, share.Name, names.DataSet, p.Dataset); err != nil {
		return nil, fmt.Errorf("attach dataset %q: %w", names.DataSet, err)
	}

	inv, err := e.createInvitation(ctx, share.Name, names.Invitation, p.TenantID, p.Identity)
	if err != nil {
		return nil, fmt.Errorf("create invitation %q: %w", names.Invitation, err)
	}

	e.logger.Info("Share ready",
		"share", share.Name,
		"invitation_id", inv.InvitationID,
		"provider_node", p.ProviderNodeID,
		"consumer_node", p.ConsumerNodeID)

	return shareResponse(p, inv), nil
}

// Status reports the invitation's current state without touching any
// provider-side resource. An invitation that was never created yields
// ErrInvitationNotFound.
func (e *ShareEngine) Status(ctx context.Context, p ShareParams) (*models.ShareResponse, error) {
	names := naming.ForShare(p.ProviderNodeID, p.ConsumerNodeID, naming.DatasetHash(p.Dataset), p.TenantID, p.Identity)

	inv, err := e.client.GetInvitation(ctx, names.Share, names.Invitation)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, fmt.Errorf("invitation %q: %w", names.Invitation, ErrInvitationNotFound)
		}
		return nil, fmt.Errorf("get invitation %q: %w", names.Invitation, err)
	}
	return shareResponse(p, inv), nil
}

func (e *ShareEngine) ensureShare(ctx context.Context, name string) (*provider.Share, error) {
	share, err := e.client.GetShare(ctx, name)
	if err == nil {
		return share, nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}
	return e.client.CreateShare(ctx, provider.Share{
		Name:        name,
		Description: "Provider share",
		Terms:       "Terms",
		Kind:        provider.ShareKindCopyBased,
	})
}

func (e *ShareEngine) attachDataset(ctx context.Context, shareName, name string, d models.Dataset) error {
	_, err := e.client.GetDataSet(ctx, shareName, name)
	if err == nil {
		// A present mapping is reused unmodified.
		return nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return err
	}
	_, err = e.client.CreateDataSet(ctx, shareName, provider.DataSet{
		Name:               name,
		ResourceGroupName:  d.ResourceGroupName,
		StorageAccountName: d.StorageAccountName,
		ContainerName:      d.ContainerName,
		FilePath:           blobPath(d.FolderPath, d.FileName),
	})
	return err
}

func (e *ShareEngine) createInvitation(ctx context.Context, shareName, name, tenantID, identity string) (*provider.Invitation, error) {
	inv, err := e.client.GetInvitation(ctx, shareName, name)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}
	return e.client.CreateInvitation(ctx, provider.Invitation{
		Name:           name,
		ShareName:      shareName,
		TargetTenantID: tenantID,
		TargetIdentity: identity,
	})
}

func blobPath(folder, file string) string {
	if strings.HasSuffix(folder, "/") {
		return folder + file
	}
	return folder + "/" + file
}
