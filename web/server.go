package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/AlexandroAurellino/live-shop-bot/database"
	"github.com/AlexandroAurellino/live-shop-bot/engine"
	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

// Server exposes the operator API: session control, live stats, the
// settings store, the product catalog, and the websocket event feed.
type Server struct {
	manager  *engine.Manager
	settings database.SettingsStore
	products database.ProductStore
	hub      *Hub
	logger   *logging.Logger
}

// NewServer wires the control surface to its collaborators.
func NewServer(manager *engine.Manager, settings database.SettingsStore, products database.ProductStore, hub *Hub, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		manager:  manager,
		settings: settings,
		products: products,
		hub:      hub,
		logger:   logger,
	}
}

// Routes builds the API mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/api/products", s.handleProducts)
	mux.HandleFunc("/ws", s.hub.ServeWS)
	return mux
}

// Run serves the API until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("control server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Routes())
}

type controlRequest struct {
	Action  string `json:"action"`
	Product string `json:"product,omitempty"`
}

type controlResponse struct {
	OK      bool   `json:"ok"`
	Running bool   `json:"running"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid control request"))
		return
	}

	switch strings.ToLower(req.Action) {
	case "start":
		if err := s.manager.Start(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, engine.ErrAlreadyRunning) {
				status = http.StatusConflict
			}
			s.writeError(w, status, err)
			return
		}
		s.writeControl(w, "session started")
	case "stop":
		s.manager.Stop()
		s.writeControl(w, "session stopped")
	case "skip":
		if !s.manager.SkipCurrent() {
			s.writeError(w, http.StatusConflict, errors.New("nothing is playing"))
			return
		}
		s.writeControl(w, "skipped")
	case "play":
		if req.Product == "" {
			s.writeError(w, http.StatusBadRequest, errors.New("play requires a product name"))
			return
		}
		if !s.manager.ManualPlay(req.Product) {
			s.writeError(w, http.StatusNotFound, errors.Errorf("no product matches %q", req.Product))
			return
		}
		s.writeControl(w, "queued "+req.Product)
	default:
		s.writeError(w, http.StatusBadRequest, errors.Errorf("unknown action %q", req.Action))
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.manager.LiveStats())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.LoadSettings(ctx)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		redactSecrets(settings)
		s.writeJSON(w, http.StatusOK, settings)
	case http.MethodPost:
		var incoming map[string]string
		if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
			s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid settings payload"))
			return
		}
		stripRedacted(incoming)
		if err := s.settings.SaveSettings(ctx, incoming); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		// Settings apply on the next session start.
		resp := map[string]interface{}{"ok": true, "restart_required": s.manager.Running()}
		s.writeJSON(w, http.StatusOK, resp)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		products, err := s.products.ListProducts(ctx)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if products == nil {
			products = []types.Product{}
		}
		s.writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var incoming []types.Product
		if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
			s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "invalid products payload"))
			return
		}
		for _, p := range incoming {
			if strings.TrimSpace(p.Name) == "" {
				s.writeError(w, http.StatusBadRequest, errors.New("every product needs a name"))
				return
			}
		}
		if err := s.products.ReplaceProducts(ctx, incoming); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "count": len(incoming)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	}
}

const redactedValue = "__redacted__"

// secretKeys never leave the process in readable form.
var secretKeys = []string{"classifier_api_key", "obs_ws_password", "chat_token"}

func redactSecrets(settings map[string]string) {
	for _, key := range secretKeys {
		if settings[key] != "" {
			settings[key] = redactedValue
		}
	}
}

// stripRedacted drops placeholder values echoed back by the dashboard so a
// save does not overwrite a stored secret with the redaction marker.
func stripRedacted(settings map[string]string) {
	for key, value := range settings {
		if value == redactedValue {
			delete(settings, key)
		}
	}
}

func (s *Server) writeControl(w http.ResponseWriter, message string) {
	s.writeJSON(w, http.StatusOK, controlResponse{
		OK:      true,
		Running: s.manager.Running(),
		Message: message,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("error writing response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", "status", status, "error", err.Error())
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
