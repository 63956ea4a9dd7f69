// Package memory is an in-process implementation of the provider
// contract. The daemons run against it in local mode and the engine tests
// drive it directly. It models the provider's lifecycle rules (invitation
// acceptance on subscribe, one current synchronization per subscription)
// without doing any data movement.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/provider"
)

type Store struct {
	mu     sync.Mutex
	logger *slog.Logger

	shares        map[string]provider.Share
	dataSets      map[string]map[string]provider.DataSet
	invitations   map[string]provider.Invitation // keyed by invitation name
	subscriptions map[string]provider.Subscription
	mappings      map[string]map[string]provider.DataSetMapping
	syncs         map[string]provider.Synchronization // keyed by subscription name
}

var _ provider.Client = &Store{}

func New(logger *slog.Logger) *Store {
	return &Store{
		logger:        logger.With("component", "memory-provider"),
		shares:        make(map[string]provider.Share),
		dataSets:      make(map[string]map[string]provider.DataSet),
		invitations:   make(map[string]provider.Invitation),
		subscriptions: make(map[string]provider.Subscription),
		mappings:      make(map[string]map[string]provider.DataSetMapping),
		syncs:         make(map[string]provider.Synchronization),
	}
}

func (s *Store) GetShare(ctx context.Context, name string) (*provider.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	share, ok := s.shares[name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &share, nil
}

func (s *Store) CreateShare(ctx context.Context, share provider.Share) (*provider.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.shares[share.Name]; ok {
		return &existing, nil
	}
	s.shares[share.Name] = share
	s.logger.Debug("Created share", "name", share.Name, "kind", share.Kind)
	return &share, nil
}

func (s *Store) GetDataSet(ctx context.Context, shareName, name string) (*provider.DataSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.dataSets[shareName][name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &ds, nil
}

func (s *Store) CreateDataSet(ctx context.Context, shareName string, ds provider.DataSet) (*provider.DataSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[shareName]; !ok {
		return nil, fmt.Errorf("share %q does not exist", shareName)
	}
	if s.dataSets[shareName] == nil {
		s.dataSets[shareName] = make(map[string]provider.DataSet)
	}
	if existing, ok := s.dataSets[shareName][ds.Name]; ok {
		return &existing, nil
	}
	ds.DataSetID = uuid.NewString()
	s.dataSets[shareName][ds.Name] = ds
	s.logger.Debug("Created dataset", "share", shareName, "name", ds.Name)
	return &ds, nil
}

func (s *Store) GetInvitation(ctx context.Context, shareName, name string) (*provider.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[name]
	if !ok || inv.ShareName != shareName {
		return nil, provider.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv provider.Invitation) (*provider.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shares[inv.ShareName]; !ok {
		return nil, fmt.Errorf("share %q does not exist", inv.ShareName)
	}
	if existing, ok := s.invitations[inv.Name]; ok {
		return &existing, nil
	}
	inv.InvitationID = uuid.NewString()
	inv.Status = models.StatusPending
	inv.SentAt = time.Now().UTC()
	s.invitations[inv.Name] = inv
	s.logger.Debug("Created invitation", "name", inv.Name, "invitation_id", inv.InvitationID)
	return &inv, nil
}

// ListReceivedInvitations returns every invitation in the store. The
// in-process provider has a single consumer identity, so nothing is
// filtered by tenant here.
func (s *Store) ListReceivedInvitations(ctx context.Context) ([]provider.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Invitation, 0, len(s.invitations))
	for _, inv := range s.invitations {
		out = append(out, inv)
	}
	return out, nil
}

func (s *Store) GetSubscription(ctx context.Context, name string) (*provider.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &sub, nil
}

// CreateSubscription accepts the invitation the subscription references:
// the invitation flips to Succeeded so the provider side can observe that
// the handshake completed.
func (s *Store) CreateSubscription(ctx context.Context, sub provider.Subscription) (*provider.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.subscriptions[sub.Name]; ok {
		return &existing, nil
	}
	found := false
	for name, inv := range s.invitations {
		if inv.InvitationID == sub.InvitationID {
			inv.Status = models.StatusSucceeded
			s.invitations[name] = inv
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("invitation %q does not exist", sub.InvitationID)
	}
	s.subscriptions[sub.Name] = sub
	s.logger.Debug("Created subscription", "name", sub.Name, "invitation_id", sub.InvitationID)
	return &sub, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, name)
	delete(s.mappings, name)
	delete(s.syncs, name)
	return nil
}

func (s *Store) ListSourceDataSets(ctx context.Context, subscriptionName string) ([]provider.SourceDataSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[subscriptionName]
	if !ok {
		return nil, provider.ErrNotFound
	}
	// Walk back from the subscription's invitation to the share it covers.
	var shareName string
	for _, inv := range s.invitations {
		if inv.InvitationID == sub.InvitationID {
			shareName = inv.ShareName
			break
		}
	}
	var out []provider.SourceDataSet
	for _, ds := range s.dataSets[shareName] {
		out = append(out, provider.SourceDataSet{
			DataSetID:   ds.DataSetID,
			DataSetName: ds.Name,
		})
	}
	return out, nil
}

func (s *Store) GetDataSetMapping(ctx context.Context, subscriptionName, name string) (*provider.DataSetMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[subscriptionName][name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &m, nil
}

func (s *Store) CreateDataSetMapping(ctx context.Context, subscriptionName string, m provider.DataSetMapping) (*provider.DataSetMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[subscriptionName]; !ok {
		return nil, fmt.Errorf("subscription %q does not exist", subscriptionName)
	}
	if s.mappings[subscriptionName] == nil {
		s.mappings[subscriptionName] = make(map[string]provider.DataSetMapping)
	}
	if existing, ok := s.mappings[subscriptionName][m.Name]; ok {
		return &existing, nil
	}
	s.mappings[subscriptionName][m.Name] = m
	return &m, nil
}

// Synchronize launches a run for the subscription. A second launch while
// the current run is still open reports ErrConflict, matching the
// provider's 409 behavior.
func (s *Store) Synchronize(ctx context.Context, subscriptionName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[subscriptionName]; !ok {
		return provider.ErrNotFound
	}
	if run, ok := s.syncs[subscriptionName]; ok && !run.Status.Terminal() {
		return provider.ErrConflict
	}
	s.syncs[subscriptionName] = provider.Synchronization{
		Status: models.StatusQueued,
		Start:  time.Now().UTC(),
	}
	s.logger.Debug("Launched synchronization", "subscription", subscriptionName)
	return nil
}

func (s *Store) GetSynchronization(ctx context.Context, subscriptionName string) (*provider.Synchronization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.syncs[subscriptionName]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return &run, nil
}

// ResolveSynchronization forces the current run for the subscription into
// the given state. Local runs and tests use it to drive a run to a
// terminal status, since the in-process provider moves no data.
func (s *Store) ResolveSynchronization(subscriptionName string, status models.Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.syncs[subscriptionName]
	if !ok {
		return
	}
	run.Status = status
	run.Message = message
	run.End = time.Now().UTC()
	run.DurationMS = run.End.Sub(run.Start).Milliseconds()
	s.syncs[subscriptionName] = run
}
