package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, hub: hub, logger: logger}
}

func (h *SettingsHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	hash, err := h.settingsStore.Get(store.KeyGlobalPIN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_pin": hash != ""})
}

// HasPIN reports whether a global PIN is configured. The hash itself never
// leaves the server.
func (h *SettingsHandler) HasPIN(w http.ResponseWriter, r *http.Request) {
	hash, err := h.settingsStore.Get(store.KeyGlobalPIN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_pin": hash != ""})
}

// VerifyPIN checks a submitted PIN against the stored hash. With no PIN
// configured every check passes, so clients can gate unconditionally.
func (h *SettingsHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	hash, err := h.settingsStore.Get(store.KeyGlobalPIN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}
	if hash == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// Update sets, changes, or clears the global PIN. Changing or clearing an
// existing PIN requires the current one.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GlobalPIN  string `json:"global_pin"`
		CurrentPIN string `json:"current_pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	stored, err := h.settingsStore.Get(store.KeyGlobalPIN)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get settings"})
		return
	}

	if stored != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(req.CurrentPIN)); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "incorrect PIN"})
			return
		}
	}

	if req.GlobalPIN == "" {
		if err := h.settingsStore.Delete(store.KeyGlobalPIN); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear PIN"})
			return
		}
		h.broadcast(websocket.NewMessage("settings", "updated", 0, nil))
		writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
		return
	}

	if len(req.GlobalPIN) != 4 || !isDigits(req.GlobalPIN) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "PIN must be exactly 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.GlobalPIN), bcrypt.DefaultCost)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to hash PIN"})
		return
	}

	if err := h.settingsStore.Set(store.KeyGlobalPIN, string(hash)); err != nil {
		h.logger.Error("set pin", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save PIN"})
		return
	}

	h.broadcast(websocket.NewMessage("settings", "updated", 0, nil))

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}
