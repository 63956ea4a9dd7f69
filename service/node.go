package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nodemesh/datashare/config"
	"github.com/nodemesh/datashare/models"
	"github.com/nodemesh/datashare/orchestrate"
)

const nodeErrorSource = "shareservice"

// NodeAPI is the share-node daemon's HTTP surface.
type NodeAPI struct {
	appCtx context.Context
	logger *slog.Logger
	cfg    *config.Node
	orch   *orchestrate.Orchestrator

	rateLimiters map[string]*rate.Limiter
	mux          *http.ServeMux
}

func NewNodeAPI(ctx context.Context, logger *slog.Logger, cfg *config.Node, orch *orchestrate.Orchestrator) *NodeAPI {
	api := &NodeAPI{
		appCtx:       ctx,
		logger:       logger.With("service", "node-api"),
		cfg:          cfg,
		orch:         orch,
		rateLimiters: buildRateLimiters(logger, cfg.RateLimiters),
		mux:          http.NewServeMux(),
	}
	api.routes()
	return api
}

func (a *NodeAPI) routes() {
	limited := func(category string, h http.HandlerFunc) http.Handler {
		return rateLimitMiddleware(a.logger, a.rateLimiters, category, h)
	}

	a.mux.Handle("POST /share", limited("share", a.shareHandler))
	a.mux.Handle("GET /share", limited("share", a.shareStatusHandler))
	a.mux.Handle("GET /consume", limited("consume", a.consumeHandler))
	// /shareconsume POST is an alias of /share; GET reaches the remote
	// consumer through a registry. /consumeshare is the verb the remote
	// side invokes on us.
	a.mux.Handle("POST /shareconsume", limited("share", a.shareHandler))
	a.mux.Handle("GET /shareconsume", limited("consume", a.shareConsumeHandler))
	a.mux.Handle("GET /consumeshare", limited("consume", a.consumeHandler))
	a.mux.Handle("GET /version", limited("default", a.versionHandler))
	a.mux.Handle("GET /time", limited("default", a.timeHandler))
}

// Handler exposes the mux for tests.
func (a *NodeAPI) Handler() http.Handler {
	return a.mux
}

// Run serves until the app context is cancelled.
func (a *NodeAPI) Run() {
	serve(a.appCtx, a.logger, a.cfg.HTTPBinding, a.cfg.TLS, a.mux)
}

func (a *NodeAPI) shareHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req models.ShareRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, nodeErrorSource, "Invalid JSON payload for share: "+err.Error())
		return
	}
	if req.ProviderNodeID == "" || req.ConsumerNodeID == "" {
		writeError(a.logger, w, http.StatusBadRequest, nodeErrorSource, "Missing provider_node_id or consumer_node_id in share request payload")
		return
	}

	a.logger.Info("Share requested",
		"provider_node_id", req.ProviderNodeID,
		"consumer_node_id", req.ConsumerNodeID)

	resp, err := a.orch.Share(r.Context(), req)
	if err != nil {
		writeError(a.logger, w, statusFor(err), nodeErrorSource, err.Error())
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}

func (a *NodeAPI) shareStatusHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := shareRequestFromQuery(r)
	if !ok {
		writeError(a.logger, w, http.StatusBadRequest, nodeErrorSource, "Missing provider_node_id or consumer_node_id parameter")
		return
	}

	resp, err := a.orch.ShareStatus(r.Context(), req)
	if err != nil {
		writeError(a.logger, w, statusFor(err), nodeErrorSource, err.Error())
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}

func (a *NodeAPI) consumeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := consumeRequestFromQuery(r)
	if !ok {
		writeError(a.logger, w, http.StatusBadRequest, nodeErrorSource, "Missing provider_node_id, consumer_node_id or invitation_id parameter")
		return
	}

	a.logger.Info("Consume requested",
		"provider_node_id", req.ProviderNodeID,
		"invitation_id", req.InvitationID)

	resp, err := a.orch.Consume(r.Context(), req)
	if err != nil {
		writeError(a.logger, w, statusFor(err), nodeErrorSource, err.Error())
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}

func (a *NodeAPI) shareConsumeHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := consumeRequestFromQuery(r)
	if !ok {
		writeError(a.logger, w, http.StatusBadRequest, nodeErrorSource, "Missing provider_node_id, consumer_node_id or invitation_id parameter")
		return
	}

	resp, err := a.orch.ShareConsume(r.Context(), req)
	if err != nil {
		writeError(a.logger, w, statusFor(err), nodeErrorSource, err.Error())
		return
	}
	writeJSON(a.logger, w, http.StatusOK, resp)
}

func (a *NodeAPI) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.logger, w, http.StatusOK, Version)
}

func (a *NodeAPI) timeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(a.logger, w, http.StatusOK, time.Now().UTC().Format("2006/01/02-15:04:05"))
}
