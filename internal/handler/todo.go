package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/questboard/internal/model"
	"github.com/dukerupert/questboard/internal/schedule"
	"github.com/dukerupert/questboard/internal/scoring"
	"github.com/dukerupert/questboard/internal/store"
	"github.com/dukerupert/questboard/internal/tracker"
	"github.com/dukerupert/questboard/internal/websocket"
)

type TodoHandler struct {
	todoStore *store.TodoStore
	userStore *store.UserStore
	tracker   *tracker.Tracker
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewTodoHandler(ts *store.TodoStore, us *store.UserStore, tr *tracker.Tracker, hub *websocket.Hub, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todoStore: ts, userStore: us, tracker: tr, hub: hub, logger: logger}
}

func (h *TodoHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// dateParam resolves an optional YYYY-MM-DD value, preferring what the
// client sent over server wall clock so one kiosk's midnight does not shift
// another client's day.
func dateParam(s string) (schedule.Date, error) {
	if s == "" {
		return schedule.Today(), nil
	}
	return schedule.ParseDate(s)
}

// List returns the materialized todo list for (user, date).
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	userID, err := parseInt64(userIDStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
		return
	}

	date, err := dateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	todos, err := h.todoStore.ListForDate(userID, date)
	if err != nil {
		h.logger.Error("list todos", "error", err, "user_id", userID, "date", date)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list todos"})
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

// OpenList returns unclaimed open-list todos.
func (h *TodoHandler) OpenList(w http.ResponseWriter, r *http.Request) {
	todos, err := h.todoStore.ListOpenList()
	if err != nil {
		h.logger.Error("list open list", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list open-list todos"})
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

type createTodoRequest struct {
	UserID           *int64 `json:"user_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	SpecificDate     string `json:"specific_date"`
	RecurrenceType   string `json:"recurrence_type"`
	RecurrenceDays   []int  `json:"recurrence_days"`
	IsOpenList       bool   `json:"is_open_list"`
}

func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	switch req.RecurrenceType {
	case model.RecurrenceNone, model.RecurrenceDaily:
	case model.RecurrenceWeekly:
		if len(req.RecurrenceDays) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weekly todos need at least one weekday"})
			return
		}
		for _, d := range req.RecurrenceDays {
			if d < 0 || d > 6 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weekdays must be 0 (Sunday) through 6 (Saturday)"})
				return
			}
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recurrence_type must be daily or weekly"})
		return
	}

	// A todo is dated or recurring, never both.
	if req.SpecificDate != "" {
		if req.RecurrenceType != model.RecurrenceNone {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "a todo cannot have both a specific date and a recurrence"})
			return
		}
		if _, err := schedule.ParseDate(req.SpecificDate); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "specific_date must be YYYY-MM-DD"})
			return
		}
	}

	if req.UserID != nil {
		user, err := h.userStore.GetByID(*req.UserID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to check user"})
			return
		}
		if user == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user not found"})
			return
		}
	}

	todo, err := h.todoStore.Create(store.CreateTodoParams{
		UserID:           req.UserID,
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		SpecificDate:     req.SpecificDate,
		RecurrenceType:   req.RecurrenceType,
		RecurrenceDays:   req.RecurrenceDays,
		IsOpenList:       req.IsOpenList,
	})
	if err != nil {
		h.logger.Error("create todo", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create todo"})
		return
	}

	h.broadcast(websocket.NewMessage("todo", "created", todo.ID, nil))

	writeJSON(w, http.StatusCreated, todo)
}

type updateTodoRequest struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	EstimatedMinutes  *int    `json:"estimated_minutes"`
	RemainingSeconds  *int    `json:"remaining_seconds"`
	Completed         *bool   `json:"completed"`
	PointsEarned      *int    `json:"points_earned"`
	PauseUsed         *bool   `json:"pause_used"`
	SuperPointUsed    *bool   `json:"super_point_used"`
	ActualTimeSeconds *int    `json:"actual_time_seconds"`
	CompletionDate    *string `json:"completion_date"`
}

// Update applies a partial update. A patch that marks the todo completed
// also credits the owner's points, records the per-date overlay for
// recurring todos, and re-evaluates the day and streak through the tracker.
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.todoStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get todo"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "todo not found"})
		return
	}

	var req updateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	// Date being acted on: explicit completion_date wins, then the todo's
	// own date, then today.
	var date schedule.Date
	switch {
	case req.CompletionDate != nil:
		date, err = schedule.ParseDate(*req.CompletionDate)
	case existing.SpecificDate != "":
		date, err = schedule.ParseDate(existing.SpecificDate)
	default:
		date = schedule.Today()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "completion_date must be YYYY-MM-DD"})
		return
	}

	completing := req.Completed != nil && *req.Completed

	points := 0
	if completing {
		if req.PointsEarned != nil {
			points = *req.PointsEarned
		} else if req.ActualTimeSeconds != nil {
			est := existing.EstimatedMinutes
			if req.EstimatedMinutes != nil {
				est = *req.EstimatedMinutes
			}
			points = scoring.Compute(est, *req.ActualTimeSeconds, boolOr(req.PauseUsed, existing.PauseUsed), boolOr(req.SuperPointUsed, existing.SuperPointUsed)).Total
		}
	}

	patch := store.TodoPatch{
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		RemainingSeconds: req.RemainingSeconds,
		PauseUsed:        req.PauseUsed,
		SuperPointUsed:   req.SuperPointUsed,
		ActualTimeSecs:   req.ActualTimeSeconds,
	}

	if existing.Recurring() {
		// Completion state for recurring todos lives in the per-date
		// overlay; the base row only gets the timer fields and a stamp of
		// the date being acted on.
		d := date.String()
		patch.LastActivityDate = &d
	} else {
		patch.Completed = req.Completed
		if completing {
			now := time.Now().UTC()
			patch.CompletedAt = &now
			patch.PointsEarned = &points
		}
	}

	updated, err := h.todoStore.UpdateFields(id, patch)
	if err != nil {
		h.logger.Error("update todo", "error", err, "todo_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update todo"})
		return
	}

	ownerID := existing.UserID
	if ownerID == nil {
		ownerID = existing.ClaimedByUserID
	}

	switch {
	case completing && ownerID != nil:
		comp := tracker.Completion{
			PointsEarned:   points,
			PauseUsed:      updated.PauseUsed,
			SuperPointUsed: updated.SuperPointUsed,
			ActualTimeSecs: updated.ActualTimeSecs,
		}
		if err := h.tracker.RecordCompletion(existing, *ownerID, date, comp); err != nil {
			h.logger.Error("record completion", "error", err, "todo_id", id, "user_id", *ownerID)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record completion"})
			return
		}
	case req.SuperPointUsed != nil && *req.SuperPointUsed && ownerID != nil:
		// A super point applied to an already-completed task changes its
		// on-time status, so the day verdict has to be re-checked. Points
		// stay as recorded.
		wasCompleted := existing.Completed
		if existing.Recurring() {
			overlay, err := h.todoStore.GetCompletion(id, date)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get completion"})
				return
			}
			wasCompleted = overlay != nil
			if overlay != nil {
				if err := h.todoStore.UpsertCompletion(id, date, overlay.PointsEarned, overlay.PauseUsed, true, overlay.ActualTimeSecs); err != nil {
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update completion"})
					return
				}
			}
		}
		if wasCompleted {
			if err := h.tracker.ReevaluateDay(*ownerID, date); err != nil {
				h.logger.Error("reevaluate day", "error", err, "todo_id", id, "user_id", *ownerID)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record completion"})
				return
			}
		}
	}

	// Response reflects the acted-on date for recurring todos.
	if updated.Recurring() {
		overlay, err := h.todoStore.GetCompletion(id, date)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get completion"})
			return
		}
		if overlay != nil {
			updated.Completed = true
			updated.PointsEarned = overlay.PointsEarned
			updated.PauseUsed = overlay.PauseUsed
			updated.SuperPointUsed = overlay.SuperPointUsed
			updated.ActualTimeSecs = overlay.ActualTimeSecs
		}
	}

	h.broadcast(websocket.NewMessage("todo", "updated", id, nil))

	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a todo, or with scope=single hides just one occurrence of
// a recurring todo behind an exception record.
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.todoStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get todo"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "todo not found"})
		return
	}

	if r.URL.Query().Get("scope") == "single" {
		date, err := dateParam(r.URL.Query().Get("date"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		if err := h.todoStore.InsertException(id, date); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete occurrence"})
			return
		}
	} else {
		if err := h.todoStore.Delete(id); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete todo"})
			return
		}
	}

	h.broadcast(websocket.NewMessage("todo", "deleted", id, nil))

	w.WriteHeader(http.StatusNoContent)
}

// Claim assigns an open-list todo to the requesting user. Exactly one of
// two concurrent claims wins; the loser gets a conflict.
func (h *TodoHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	existing, err := h.todoStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get todo"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "todo not found"})
		return
	}

	ok, err := h.todoStore.Claim(id, req.UserID)
	if err != nil {
		h.logger.Error("claim todo", "error", err, "todo_id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to claim todo"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "todo is not claimable"})
		return
	}

	todo, err := h.todoStore.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get todo"})
		return
	}

	h.broadcast(websocket.NewMessage("todo", "claimed", id, nil))

	writeJSON(w, http.StatusOK, todo)
}

// ScorePreview returns the point breakdown the scoring engine would award,
// so the client can show the split before confirming a completion.
func (h *TodoHandler) ScorePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EstimatedMinutes  int  `json:"estimated_minutes"`
		ActualTimeSeconds int  `json:"actual_time_seconds"`
		PauseUsed         bool `json:"pause_used"`
		SuperPointUsed    bool `json:"super_point_used"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	writeJSON(w, http.StatusOK, scoring.Compute(req.EstimatedMinutes, req.ActualTimeSeconds, req.PauseUsed, req.SuperPointUsed))
}

// DailyCompletion reports whether all of a user's todos for a date were
// completed on time. No recorded verdict reads as false.
func (h *TodoHandler) DailyCompletion(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	userID, err := parseInt64(userIDStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
		return
	}

	date, err := dateParam(r.URL.Query().Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	dc, err := h.todoStore.GetDailyCompletion(userID, date)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get daily completion"})
		return
	}

	allOnTime := dc != nil && dc.AllCompletedOnTime
	writeJSON(w, http.StatusOK, map[string]bool{"all_completed_on_time": allOnTime})
}

func boolOr(p *bool, fallback bool) bool {
	if p != nil {
		return *p
	}
	return fallback
}
