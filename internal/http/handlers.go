package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"darky/internal/core"
	applog "darky/internal/log"
	"darky/internal/storage"
	"darky/internal/tracker"
)

// --- gifts ---

func (s *Server) handleListGifts(w http.ResponseWriter, r *http.Request) {
	year, err := optionalYearQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gifts := s.tracker.Gifts(year)
	if gifts == nil {
		gifts = []core.Gift{}
	}
	writeJSON(w, http.StatusOK, gifts)
}

type createGiftRequest struct {
	Year        int             `json:"year"`
	Name        string          `json:"name"`
	Description string          `json:"gift"`
	Price       json.RawMessage `json:"price"`
	Status      string          `json:"status"`
}

func (s *Server) handleCreateGift(w http.ResponseWriter, r *http.Request) {
	var req createGiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	price, err := parsePriceField(req.Price)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	status := core.Status(req.Status)
	if req.Status == "" {
		status = core.StatusIdea
	}

	g, err := s.tracker.AddGift(r.Context(), tracker.AddGiftInput{
		Year:        req.Year,
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Status:      status,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	giftMutationsTotal.WithLabelValues("created").Inc()
	s.structured.LogGiftChange(r.Context(), applog.OpCreate, g.ID, g.Year, g.Name, string(g.Status))
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGift(w http.ResponseWriter, r *http.Request) {
	g, ok := s.tracker.Gift(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "gift not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

type updateGiftRequest struct {
	Price  json.RawMessage `json:"price"`
	Status *string         `json:"status"`
}

func (s *Server) handleUpdateGift(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.tracker.Gift(id); !ok {
		writeError(w, http.StatusNotFound, "gift not found")
		return
	}

	var req updateGiftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var patch tracker.GiftPatch
	if req.Price != nil {
		price, err := parsePriceField(req.Price)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		patch.Price = price
		patch.PriceSet = true
	}
	if req.Status != nil {
		status := core.Status(*req.Status)
		patch.Status = &status
	}

	if err := s.tracker.UpdateGift(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}

	g, ok := s.tracker.Gift(id)
	if !ok {
		writeError(w, http.StatusNotFound, "gift not found")
		return
	}
	giftMutationsTotal.WithLabelValues("updated").Inc()
	s.structured.LogGiftChange(r.Context(), applog.OpUpdate, g.ID, g.Year, g.Name, string(g.Status))
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGift(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	before, existed := s.tracker.Gift(id)
	// Unknown ids and locked years fall through as no-ops.
	s.tracker.DeleteGift(r.Context(), id)
	if _, ok := s.tracker.Gift(id); existed && !ok {
		giftMutationsTotal.WithLabelValues("deleted").Inc()
		s.structured.LogGiftChange(r.Context(), applog.OpDelete, before.ID, before.Year, before.Name, string(before.Status))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndoDelete(w http.ResponseWriter, r *http.Request) {
	pending := s.tracker.PendingDelete()
	s.tracker.UndoDelete(r.Context())
	if pending != nil {
		if g, ok := s.tracker.Gift(pending.Gift.ID); ok {
			giftMutationsTotal.WithLabelValues("restored").Inc()
			s.structured.LogGiftChange(r.Context(), applog.OpRestore, g.ID, g.Year, g.Name, string(g.Status))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- names ---

func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	year, err := optionalYearQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if year == 0 {
		year = s.tracker.SelectedYear()
	}
	names := s.tracker.Names(year)
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

type addNameRequest struct {
	Year int    `json:"year"`
	Name string `json:"name"`
}

func (s *Server) handleAddName(w http.ResponseWriter, r *http.Request) {
	var req addNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.tracker.AddName(r.Context(), req.Year, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.tracker.Names(req.Year))
}

func (s *Server) handleRemoveName(w http.ResponseWriter, r *http.Request) {
	year, err := optionalYearQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if year == 0 {
		year = s.tracker.SelectedYear()
	}
	s.tracker.RemoveName(r.Context(), year, r.PathValue("name"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndoNameDelete(w http.ResponseWriter, r *http.Request) {
	s.tracker.UndoNameDelete(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// --- years ---

func (s *Server) handleListYears(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Years    []int `json:"years"`
		Selected int   `json:"selected"`
		Current  int   `json:"current"`
	}{
		Years:    s.tracker.Years(),
		Selected: s.tracker.SelectedYear(),
		Current:  s.tracker.CurrentYear(),
	})
}

func (s *Server) handleAddYear(w http.ResponseWriter, r *http.Request) {
	year := s.tracker.AddYear(r.Context())
	writeJSON(w, http.StatusCreated, struct {
		Year  int      `json:"year"`
		Names []string `json:"names"`
	}{Year: year, Names: s.tracker.Names(year)})
}

func (s *Server) handleYearNames(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	names := s.tracker.Names(year)
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleUnlockYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	if !s.tracker.UnlockYear(year) {
		writeError(w, http.StatusConflict, "only the immediately preceding year can be unlocked")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLockYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	s.tracker.LockYear(year)
	w.WriteHeader(http.StatusNoContent)
}

// --- budgets ---

type setBudgetRequest struct {
	Budget json.RawMessage `json:"budget"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	var req setBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Invalid and negative drafts are silently ignored, blank clears.
	s.tracker.SetBudget(r.Context(), year, rawToString(req.Budget))

	budget, ok := s.tracker.Budget(year)
	resp := struct {
		Year   int    `json:"year"`
		Budget *int64 `json:"budget"`
	}{Year: year}
	if ok {
		resp.Budget = &budget
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- statistics ---

func (s *Server) handleYearlyTotals(w http.ResponseWriter, r *http.Request) {
	totals := s.tracker.YearlyTotals()
	if totals == nil {
		totals = []core.YearTotal{}
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handlePersonTotals(w http.ResponseWriter, r *http.Request) {
	year, err := optionalYearQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats := s.tracker.PersonTotals(year)
	if stats == nil {
		stats = []core.PersonStat{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleYearOverview(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Overview(year))
}

// --- pending records ---

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Delete     *tracker.PendingDelete     `json:"delete"`
		Add        *tracker.PendingAdd        `json:"add"`
		NameDelete *tracker.PendingNameDelete `json:"nameDelete"`
		Highlight  string                     `json:"highlightedGiftId"`
	}{
		Delete:     s.tracker.PendingDelete(),
		Add:        s.tracker.PendingAdd(),
		NameDelete: s.tracker.PendingNameDelete(),
		Highlight:  s.tracker.HighlightedGift(),
	})
}

// --- blobs ---

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if s.blobs == nil || !isKnownBlobKey(key) {
		writeError(w, http.StatusNotFound, "unknown blob key")
		return
	}
	raw, ok, err := s.blobs.Load(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if s.blobs == nil || !isKnownBlobKey(key) {
		writeError(w, http.StatusNotFound, "unknown blob key")
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if !json.Valid(raw) {
		writeError(w, http.StatusUnprocessableEntity, "blob must be valid JSON")
		return
	}
	if err := s.blobs.Save(r.Context(), key, raw); err != nil {
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isKnownBlobKey(key string) bool {
	for _, k := range storage.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// --- helpers ---

func optionalYearQuery(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return 0, nil
	}
	year, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", v)
	}
	return year, nil
}

// parsePriceField accepts a JSON number, a numeric string (comma or dot
// decimals) or null. Blank and null mean unpriced.
func parsePriceField(raw json.RawMessage) (*int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid price")
		}
		return core.ParsePrice(s)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("invalid price")
	}
	return core.PriceFromNumber(v)
}

// rawToString flattens a JSON scalar into the tracker's raw budget input.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw)
		}
		return s
	}
	return string(raw)
}
