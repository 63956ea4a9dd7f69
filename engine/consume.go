package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/naming"
	"github.com/nodemesh/datashare/provider"
)

// ConsumeParams identifies one consuming workflow. Dataset is the
// destination location on the consumer side.
type ConsumeParams struct {
	ProviderNodeID string
	ConsumerNodeID string
	InvitationID   string
	Dataset        models.Dataset
}

// ConsumeEngine accepts invitations and drives synchronization on the
// consumer node.
type ConsumeEngine struct {
	logger *slog.Logger
	client provider.Client
}

func NewConsumeEngine(logger *slog.Logger, client provider.Client) *ConsumeEngine {
	return &ConsumeEngine{
		logger: logger.With("component", "consume-engine"),
		client: client,
	}
}

// Consume is idempotent on the derived subscription name. The first call
// validates the invitation, creates the subscription and mapping and
// launches a synchronization; every later call reports the current run
// without relaunching.
func (e *ConsumeEngine) Consume(ctx context.Context, p ConsumeParams) (*models.ConsumeResponse, error) {
	names := naming.ForConsume(p.ProviderNodeID, p.ConsumerNodeID, naming.DatasetHash(p.Dataset), p.InvitationID)

	run, err := e.client.GetSynchronization(ctx, names.Subscription)
	if err == nil {
		// The invitation has already been consumed; report progress as-is.
		// A message on the run is an operational failure, not an HTTP one.
		return consumeResponse(p, run), nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return nil, fmt.Errorf("get synchronization %q: %w", names.Subscription, err)
	}

	if err := e.checkInvitationReceived(ctx, p.InvitationID); err != nil {
		return nil, err
	}

	if err := e.ensureSubscription(ctx, names.Subscription, p.InvitationID); err != nil {
		return nil, fmt.Errorf("ensure subscription %q: %w", names.Subscription, err)
	}

	if err := e.mapDestination(ctx, names.Subscription, names.Mapping, p.Dataset); err != nil {
		return nil, fmt.Errorf("map destination %q: %w", names.Mapping, err)
	}

	run, err = e.launchSynchronization(ctx, names.Subscription)
	if err != nil {
		return nil, fmt.Errorf("launch synchronization %q: %w", names.Subscription, err)
	}

	e.logger.Info("Synchronization launched",
		"subscription", names.Subscription,
		"invitation_id", p.InvitationID,
		"status", run.Status)

	// Freshly launched runs legitimately report Pending or Queued.
	return consumeResponse(p, run), nil
}

func (e *ConsumeEngine) checkInvitationReceived(ctx context.Context, invitationID string) error {
	invs, err := e.client.ListReceivedInvitations(ctx)
	if err != nil {
		return fmt.Errorf("list received invitations: %w", err)
	}
	if len(invs) == 0 {
		return errors.New("the invitation list is empty or the current identity cannot read invitations, check access")
	}
	for _, inv := range invs {
		if inv.InvitationID == invitationID {
			return nil
		}
	}
	return fmt.Errorf("invitation %s not received", invitationID)
}

// ensureSubscription creates the subscription if absent. An existing
// subscription bound to a different invitation is deleted first and
// recreated against the requested one.
func (e *ConsumeEngine) ensureSubscription(ctx context.Context, name, invitationID string) error {
	sub, err := e.client.GetSubscription(ctx, name)
	if err == nil {
		if sub.InvitationID == invitationID {
			return nil
		}
		if err := e.client.DeleteSubscription(ctx, name); err != nil {
			return err
		}
	} else if !errors.Is(err, provider.ErrNotFound) {
		return err
	}
	_, err = e.client.CreateSubscription(ctx, provider.Subscription{
		Name:         name,
		InvitationID: invitationID,
	})
	return err
}

func (e *ConsumeEngine) mapDestination(ctx context.Context, subscriptionName, mappingName string, d models.Dataset) error {
	sources, err := e.client.ListSourceDataSets(ctx, subscriptionName)
	if err != nil {
		return fmt.Errorf("list source datasets: %w", err)
	}
	if len(sources) == 0 {
		return errors.New("no source dataset available on subscription")
	}
	source := sources[0]

	_, err = e.client.GetDataSetMapping(ctx, subscriptionName, mappingName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return err
	}
	_, err = e.client.CreateDataSetMapping(ctx, subscriptionName, provider.DataSetMapping{
		Name:               mappingName,
		DataSetID:          source.DataSetID,
		ResourceGroupName:  d.ResourceGroupName,
		StorageAccountName: d.StorageAccountName,
		ContainerName:      d.ContainerName,
		FilePath:           blobPath(d.FolderPath, d.FileName),
	})
	return err
}

// launchSynchronization starts a full sync and reads back the current
// run. A conflict means one is already in flight, which is success from
// the caller's point of view.
func (e *ConsumeEngine) launchSynchronization(ctx context.Context, subscriptionName string) (*provider.Synchronization, error) {
	if err := e.client.Synchronize(ctx, subscriptionName); err != nil && !errors.Is(err, provider.ErrConflict) {
		return nil, err
	}
	return e.client.GetSynchronization(ctx, subscriptionName)
}
