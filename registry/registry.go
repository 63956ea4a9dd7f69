// Package registry maintains the set of known share nodes: who they are,
// where they live and whether they are fresh. Records are never deleted;
// a node that stops registering flips to offline on the next sweep, and
// offline nodes are indistinguishable from unknown ones to callers.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nodemesh/datashare/models"
)

// ErrNodeNotFound covers both an unknown node_id and a known one that is
// currently offline.
var ErrNodeNotFound = errors.New("registry: node not found")

// Registry is the shared mutable record set. A single mutex serializes
// registrations, lookups and the liveness sweep, which runs on its own
// ticker goroutine.
type Registry struct {
	mu     sync.Mutex
	logger *slog.Logger
	store  Store

	refreshPeriod time.Duration
	now           func() time.Time
}

type Config struct {
	Logger        *slog.Logger
	Store         Store
	RefreshPeriod time.Duration
}

func New(cfg Config) *Registry {
	return &Registry{
		logger:        cfg.Logger.With("component", "registry"),
		store:         cfg.Store,
		refreshPeriod: cfg.RefreshPeriod,
		now:           time.Now,
	}
}

// Register upserts the record matching on both node_id and url; the same
// node_id under a new URL creates a second record. The node comes back
// online and its registration timestamp resets.
func (r *Registry) Register(node models.ShareNode) (models.ShareNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := models.ShareNodeInformation{
		NodeID:             node.NodeID,
		URL:                node.URL,
		Name:               node.Name,
		TenantID:           node.TenantID,
		Identity:           node.Identity,
		Status:             models.NodeOnline,
		LatestRegistration: r.now().UTC(),
	}
	if err := r.store.Put(rec); err != nil {
		return models.ShareNode{}, err
	}
	r.logger.Info("Node registered", "node_id", node.NodeID, "url", node.URL)
	return node, nil
}

// Nodes returns the public projection of every online record.
func (r *Registry) Nodes() ([]models.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.List()
	if err != nil {
		return nil, err
	}
	nodes := make([]models.Node, 0, len(recs))
	for _, rec := range recs {
		if rec.Status == models.NodeOnline {
			nodes = append(nodes, models.Node{
				NodeID:   rec.NodeID,
				TenantID: rec.TenantID,
				Identity: rec.Identity,
			})
		}
	}
	return nodes, nil
}

// Node returns the public record for node_id, or ErrNodeNotFound when the
// id is unknown or the record is offline.
func (r *Registry) Node(nodeID string) (*models.Node, error) {
	rec, err := r.lookup(nodeID)
	if err != nil {
		return nil, err
	}
	return &models.Node{
		NodeID:   rec.NodeID,
		TenantID: rec.TenantID,
		Identity: rec.Identity,
	}, nil
}

// Endpoint returns the full record, URL included, for server-to-server
// forwarding. Same not-found semantics as Node.
func (r *Registry) Endpoint(nodeID string) (*models.ShareNodeInformation, error) {
	return r.lookup(nodeID)
}

func (r *Registry) lookup(nodeID string) (*models.ShareNodeInformation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.List()
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if rec.NodeID == nodeID && rec.Status == models.NodeOnline {
			return &rec, nil
		}
	}
	return nil, ErrNodeNotFound
}

// Sweep recomputes liveness for every record: stale registrations flip to
// offline, fresh ones back to online. Records are persisted only when
// their status actually changed. Returns whether anything flipped.
func (r *Registry) Sweep() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.List()
	if err != nil {
		return false, err
	}

	now := r.now().UTC()
	updated := false
	for _, rec := range recs {
		want := models.NodeOnline
		if now.Sub(rec.LatestRegistration) > r.refreshPeriod {
			want = models.NodeOffline
		}
		if rec.Status == want {
			continue
		}
		rec.Status = want
		if err := r.store.Put(rec); err != nil {
			return updated, err
		}
		updated = true
		r.logger.Info("Node status changed", "node_id", rec.NodeID, "url", rec.URL, "status", want)
	}
	return updated, nil
}

// Run sweeps liveness every refresh period until the context is
// cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.refreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(); err != nil {
				r.logger.Error("Liveness sweep failed", "error", err)
			}
		}
	}
}
