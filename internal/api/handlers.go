// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package api

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/slack"
	"github.com/tomtom215/slackiveroo/internal/tokenstore"
	"github.com/tomtom215/slackiveroo/internal/tracker"
	"github.com/tomtom215/slackiveroo/internal/validation"
)

//go:embed templates/home.html
var templateFS embed.FS

var homeTemplate = template.Must(template.ParseFS(templateFS, "templates/home.html"))

// MentionDispatcher is satisfied by *tracker.Dispatcher.
type MentionDispatcher interface {
	OnOrderMentioned(ctx context.Context, sharingRef string, dest tracker.Destination) (tracker.Outcome, error)
}

// TrackerLister is satisfied by *tracker.Registry.
type TrackerLister interface {
	Len() int
	Snapshot() []tracker.Info
}

// Installer is satisfied by *slack.Installer.
type Installer interface {
	Enabled() bool
	Install(ctx context.Context, code string) (tokenstore.Installation, error)
}

// InstallationCounter is satisfied by *tokenstore.Store.
type InstallationCounter interface {
	Count() (int, error)
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Dispatcher    MentionDispatcher
	Trackers      TrackerLister
	Installer     Installer
	Installations InstallationCounter

	// ShortLinkDomain selects which shared links are orders.
	ShortLinkDomain string
	// ClientID is rendered into the "Add to Slack" button.
	ClientID string
	Version  string
}

// Handler serves the HTTP surface.
type Handler struct {
	deps      Deps
	startedAt time.Time
	home      []byte
	log       zerolog.Logger

	// Background work (OAuth exchanges) outlives the request that
	// triggered it but not the process.
	bgCtx context.Context
	bgWG  sync.WaitGroup
}

// NewHandler renders the home page and returns a Handler. Background work
// started by handlers is cancelled when ctx is.
func NewHandler(ctx context.Context, deps Deps) (*Handler, error) {
	var buf bytes.Buffer
	err := homeTemplate.Execute(&buf, struct {
		ClientID     string
		OAuthEnabled bool
		Domain       string
	}{
		ClientID:     deps.ClientID,
		OAuthEnabled: deps.Installer != nil && deps.Installer.Enabled(),
		Domain:       deps.ShortLinkDomain,
	})
	if err != nil {
		return nil, err
	}

	return &Handler{
		deps:      deps,
		startedAt: time.Now(),
		home:      buf.Bytes(),
		log:       logging.WithComponent("api"),
		bgCtx:     ctx,
	}, nil
}

// Wait blocks until background work has finished.
func (h *Handler) Wait() {
	h.bgWG.Wait()
}

// goBackground runs fn detached from the request. A panic is logged and
// swallowed.
func (h *Handler) goBackground(name string, fn func(ctx context.Context)) {
	h.bgWG.Add(1)
	go func() {
		defer h.bgWG.Done()
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error().Interface("panic", rec).Str("task", name).Msg("Background task panicked")
			}
		}()
		fn(h.bgCtx)
	}()
}

// SlackEvent handles POST /slack/event. The signature has already been
// checked by middleware.
func (h *Handler) SlackEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body", nil)
		return
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid event payload", nil)
		return
	}

	switch env.Type {
	case slack.TypeURLVerification:
		respondText(w, http.StatusOK, env.Challenge)
		return
	case slack.TypeEventCallback:
		h.dispatchLinks(r.Context(), env)
	default:
		logging.Ctx(r.Context()).Debug().Str("type", sanitizeLogValue(env.Type)).Msg("Ignoring Slack payload")
	}

	respondText(w, http.StatusOK, "")
}

func (h *Handler) dispatchLinks(ctx context.Context, env *slack.Envelope) {
	links := env.SharedLinks(h.deps.ShortLinkDomain)
	if len(links) == 0 {
		return
	}
	dest := tracker.Destination{TeamID: env.TeamID, ChannelID: env.Event.Channel}

	for _, link := range links {
		if _, err := h.deps.Dispatcher.OnOrderMentioned(ctx, link, dest); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("link", sanitizeLogValue(link)).
				Stringer("destination", dest).
				Msg("Rejected order mention")
		}
	}
}

type oauthCallback struct {
	Code string `validate:"required,max=512"`
}

// SlackOAuth handles GET /slack/oauth. The code exchange runs in the
// background; the browser gets an empty page right away.
func (h *Handler) SlackOAuth(w http.ResponseWriter, r *http.Request) {
	if h.deps.Installer == nil || !h.deps.Installer.Enabled() {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "OAuth installation is not configured", nil)
		return
	}

	cb := oauthCallback{Code: r.URL.Query().Get("code")}
	if verr := validation.ValidateStruct(&cb); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr.Fields)
		return
	}

	correlationID := logging.CorrelationIDFromContext(r.Context())
	h.goBackground("oauth-install", func(ctx context.Context) {
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)
		if _, err := h.deps.Installer.Install(ctx, cb.Code); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Slack installation failed")
		}
	})

	respondText(w, http.StatusOK, "")
}

// Home serves the landing page.
func (h *Handler) Home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.home)
}

// Ping answers keepalive probes.
func (h *Handler) Ping(w http.ResponseWriter, _ *http.Request) {
	respondText(w, http.StatusOK, "pong")
}

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status         string  `json:"status"`
	Version        string  `json:"version,omitempty"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	ActiveTrackers int     `json:"active_trackers"`
	Installations  int     `json:"installations"`
	StoreHealthy   bool    `json:"store_healthy"`
}

// Health reports liveness plus a few gauges. A failing token store makes
// the service "degraded" but still answers 200: trackers keep running.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:         "healthy",
		Version:        h.deps.Version,
		UptimeSeconds:  time.Since(h.startedAt).Seconds(),
		ActiveTrackers: h.deps.Trackers.Len(),
		StoreHealthy:   true,
	}

	if h.deps.Installations != nil {
		n, err := h.deps.Installations.Count()
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Token store count failed")
			health.Status = "degraded"
			health.StoreHealthy = false
		}
		health.Installations = n
	}

	respondData(w, r, health)
}

// Trackers lists active trackers.
func (h *Handler) Trackers(w http.ResponseWriter, r *http.Request) {
	infos := h.deps.Trackers.Snapshot()
	if infos == nil {
		infos = []tracker.Info{}
	}
	respondData(w, r, infos)
}
