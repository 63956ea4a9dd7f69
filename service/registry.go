package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nodemesh/datashare/client"
	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/registry"
)

const registryErrorSource = "registryservice"

// consumeForwarder is the slice of the client the registry needs to relay
// a consumption query to a node.
type consumeForwarder interface {
	ConsumeShare(ctx context.Context, req models.ConsumeRequest) (*models.ConsumeResponse, error)
}

// RegistryAPI is the registry daemon's HTTP surface.
type RegistryAPI struct {
	appCtx   context.Context
	logger   *slog.Logger
	cfg      *config.Registry
	registry *registry.Registry

	rateLimiters map[string]*rate.Limiter
	mux          *http.ServeMux

	// dial builds a forwarding client for a node URL; tests swap it out.
	dial func(nodeURL string) (consumeForwarder, error)
}

func NewRegistryAPI(ctx context.Context, logger *slog.Logger, cfg *config.Registry, reg *registry.Registry) *RegistryAPI {
	api := &RegistryAPI{
		appCtx:       ctx,
		logger:       logger.With("service", "registry-api"),
		cfg:          cfg,
		registry:     reg,
		rateLimiters: buildRateLimiters(logger, cfg.RateLimiters),
		mux:          http.NewServeMux(),
	}
	api.dial = func(nodeURL string) (consumeForwarder, error) {
		return client.New(client.Config{BaseURL: nodeURL, Logger: api.logger})
	}
	api.routes()
	return api
}

func (a *RegistryAPI) routes() {
	limited := func(category string, h http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(a.logger, a.rateLimiters, category, h)
	}

	a.mux.Handle("POST /register", limited("nodes", a.registerHandler))
	a.mux.Handle("GET /nodes", limited("nodes", a.nodesHandler))
	a.mux.Handle("GET /nodes/{node_id}", limited("nodes", a.nodeHandler))
	a.mux.Handle("GET /shareconsume", limited("consume", a.shareConsumeHandler))
	a.mux.Handle("GET /version", limited("default", a.versionHandler))
	a.mux.Handle("GET /time", limited("default", a.timeHandler))
}

// Handler exposes the mux for tests.
func (a *RegistryAPI) Handler() http.Handler {
	return a.mux
}

// Run serves until the app context is cancelled.
func (a *RegistryAPI) Run() {
	serve(a.appCtx, a.logger, a.cfg.HTTPBinding, a.cfg.TLS, a.mux)
}

func (a *RegistryAPI) registerHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var node models.ShareNode
	if err := decodeJSONBody(r, &node); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, registryErrorSource, "Invalid JSON payload for register: "+err.Error())
		return
	}
	if node.NodeID == "" || node.URL == "" {
		writeError(a.logger, w, http.StatusBadRequest, registryErrorSource, "Missing node_id or url in register request payload")
		return
	}

	echoed, err := a.registry.Register(node)
	if err != nil {
		writeError(a.logger, w, http.StatusInternalServerError, registryErrorSource, "Internal server error")
		return
	}
	writeJSON(a.logger, w, http.StatusOK, echoed)
}

func (a *RegistryAPI) nodesHandler(w http.ResponseWriter, r *http.Request) {
	nodes, err := a.registry.Nodes()
	if err != nil {
		writeError(a.logger, w, http.StatusInternalServerError, registryErrorSource, "Internal server error")
		return
	}
	writeJSON(a.logger, w, http.StatusOK, nodes)
}

func (a *RegistryAPI) nodeHandler(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node_id")

	node, err := a.registry.Node(nodeID)
	if err != nil {
		writeError(a.logger, w, statusFor(err), registryErrorSource, "Node '"+nodeID+"' does not exist")
		return
	}
	writeJSON(a.logger, w, http.StatusOK, node)
}

// shareConsumeHandler relays a consumption status query to the consumer
// node's own API and returns its response verbatim.
func (a *RegistryAPI) shareConsumeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := consumeRequestFromQuery(r)
	if !ok {
		writeError(a.logger, w, http.StatusBadRequest, registryErrorSource, "Missing provider_node_id, consumer_node_id or invitation_id parameter")
		return
	}

	rec, err := a.registry.Endpoint(req.ConsumerNodeID)
	if err != nil {
		writeError(a.logger, w, statusFor(err), registryErrorSource, "Consumer node '"+req.ConsumerNodeID+"' does not exist")
		return
	}

	fwd, err := a.dial(rec.URL)
	if err != nil {
		writeError(a.logger, w, http.StatusInternalServerError, registryErrorSource, "Cannot reach consumer node: "+err.Error())
		return
	}

	resp, err := fwd.ConsumeShare(r.Context(), req)
	if err != nil {
		writeError(a.logger, w, statusFor(err), registryErrorSource, "Forwarding to consumer node failed: "+err.Error())
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}

func (a *RegistryAPI) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.logger, w, http.StatusOK, Version)
}

func (a *RegistryAPI) timeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.logger, w, http.StatusOK, time.Now().UTC().Format("2006/01/02-15:04:05"))
}
