// Package orchestrate routes the public share/consume verbs: it resolves
// consumer identities through the registries, hands the work to the
// engines, and forwards cross-node status queries to the remote side.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/engine"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/provider"
)

// ErrNodeUnknown reports a consumer node id no registry could resolve.
var ErrNodeUnknown = errors.New("orchestrate: node unknown")

type Config struct {
	Logger     *slog.Logger
	Node       *config.Node
	Provider   provider.Client
	Registries []*client.Client
}

// Orchestrator glues the engines to the registry and the remote nodes.
// Resolved consumer records are cached briefly so repeated polling does
// not hammer the registry.
type Orchestrator struct {
	logger     *slog.Logger
	cfg        *config.Node
	shares     *engine.ShareEngine
	consumes   *engine.ConsumeEngine
	registries []*client.Client
	nodeCache  *ttlcache.Cache[string, models.Node]
	now        func() time.Time
}

func New(cfg Config) *Orchestrator {
	cache := ttlcache.New[string, models.Node](
		ttlcache.WithTTL[string, models.Node](cfg.Node.NodeCacheTTL),
	)
	go cache.Start()

	return &Orchestrator{
		logger:     cfg.Logger.With("component", "orchestrator"),
		cfg:        cfg.Node,
		shares:     engine.NewShareEngine(cfg.Logger, cfg.Provider),
		consumes:   engine.NewConsumeEngine(cfg.Logger, cfg.Provider),
		registries: cfg.Registries,
		nodeCache:  cache,
		now:        time.Now,
	}
}

// Share resolves the consumer's tenant/identity and runs the provider
// side of the workflow.
func (o *Orchestrator) Share(ctx context.Context, req models.ShareRequest) (*models.ShareResponse, error) {
	node, err := o.resolveConsumer(ctx, req.ConsumerNodeID)
	if err != nil {
		return nil, err
	}
	return o.shares.Share(ctx, engine.ShareParams{
		ProviderNodeID: req.ProviderNodeID,
		ConsumerNodeID: req.ConsumerNodeID,
		TenantID:       node.TenantID,
		Identity:       node.Identity,
		Dataset:        req.Dataset,
	})
}

// ShareStatus reports the invitation state for a share request without
// mutating anything on the provider.
func (o *Orchestrator) ShareStatus(ctx context.Context, req models.ShareRequest) (*models.ShareResponse, error) {
	node, err := o.resolveConsumer(ctx, req.ConsumerNodeID)
	if err != nil {
		return nil, err
	}
	return o.shares.Status(ctx, engine.ShareParams{
		ProviderNodeID: req.ProviderNodeID,
		ConsumerNodeID: req.ConsumerNodeID,
		TenantID:       node.TenantID,
		Identity:       node.Identity,
		Dataset:        req.Dataset,
	})
}

// Consume computes the destination location from the configured templates
// and runs the consumer side of the workflow.
func (o *Orchestrator) Consume(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	target := o.cfg.Consume
	now := o.now().UTC()
	return o.consumes.Consume(ctx, engine.ConsumeParams{
		ProviderNodeID: req.ProviderNodeID,
		ConsumerNodeID: req.ConsumerNodeID,
		InvitationID:   req.InvitationID,
		Dataset: models.Dataset{
			ResourceGroupName:  target.ResourceGroupName,
			StorageAccountName: target.StorageAccountName,
			ContainerName:      target.ContainerName,
			FolderPath:         expandTemplate(target.FolderFormat, req, now),
			FileName:           expandTemplate(target.FileNameFormat, req, now),
		},
	})
}

// ShareConsume forwards the consumption status query through a registry,
// which relays it to the consumer node's own API. The remote response is
// returned verbatim.
func (o *Orchestrator) ShareConsume(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error) {
	var lastErr error
	for _, reg := range o.registries {
		resp, err := reg.ShareConsume(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, client.ErrNotFound) {
			// The registry answered and does not know the node; trying
			// another registry will not change that faster than the next
			// registration cycle would.
			return nil, err
		}
		o.logger.Warn("Registry forwarding failed", "error", err)
	}
	return nil, fmt.Errorf("forward shareconsume: %w", lastErr)
}

func (o *Orchestrator) resolveConsumer(ctx context.Context, nodeID string) (*models.Node, error) {
	if item := o.nodeCache.Get(nodeID); item != nil {
		node := item.Value()
		return &node, nil
	}

	var lastErr error
	for _, reg := range o.registries {
		node, err := reg.Node(ctx, nodeID)
		if err == nil {
			o.nodeCache.Set(nodeID, *node, ttlcache.DefaultTTL)
			return node, nil
		}
		lastErr = err
	}
	if lastErr == nil || errors.Is(lastErr, client.ErrNotFound) {
		return nil, fmt.Errorf("node %q: %w", nodeID, ErrNodeUnknown)
	}
	return nil, fmt.Errorf("resolve node %q: %w", nodeID, lastErr)
}

// expandTemplate fills the {date}, {time}, {node_id} and {invitation_id}
// placeholders. node_id is the provider's id: consumed data lands in a
// folder named after where it came from.
func expandTemplate(format string, req models.ConsumeRequest, now time.Time) string {
	r := strings.NewReplacer(
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("2006-01-02-15-04-05"),
		"{node_id}", req.ProviderNodeID,
		"{invitation_id}", req.InvitationID,
	)
	return r.Replace(format)
}

// Stop releases the orchestrator's cache resources.
func (o *Orchestrator) Stop() {
	o.nodeCache.Stop()
}
