package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/mbertho/scrapview/pkg/forms"
	"github.com/mbertho/scrapview/pkg/snapshot"
	"github.com/mbertho/scrapview/pkg/units"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// notReady is the "no refresh has completed yet" read result. It is a state,
// not an error: the caller decides whether to trigger a refresh or wait.
type notReady struct {
	Initialized bool   `json:"initialized"`
	Scope       string `json:"scope"`
	Message     string `json:"message"`
}

func (s *Server) readSnapshot(w http.ResponseWriter, scope string) {
	snap, err := s.Store.Read(scope)
	if errors.Is(err, snapshot.ErrNotInitialized) {
		writeJSON(w, http.StatusServiceUnavailable, notReady{
			Initialized: false,
			Scope:       scope,
			Message:     "no refresh has completed yet for this scope",
		})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGlobalData(w http.ResponseWriter, r *http.Request) {
	s.readSnapshot(w, snapshot.ScopeGlobal)
}

func (s *Server) handleGlobalInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Store.Info(snapshot.ScopeGlobal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGlobalRefresh(w http.ResponseWriter, r *http.Request) {
	s.triggerFamily(w, r, "global")
}

func (s *Server) handleUnitRefresh(w http.ResponseWriter, r *http.Request) {
	s.triggerFamily(w, r, "units")
}

// triggerFamily runs (or joins) a refresh and reports its outcome. This is a
// long-running call by design; interactive callers should POST from a
// background task, not a page load.
func (s *Server) triggerFamily(w http.ResponseWriter, r *http.Request, familyName string) {
	out, err := s.Sched.Trigger(r.Context(), familyName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := http.StatusOK
	if !out.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, out)
}

func (s *Server) handleUnitList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"units": units.Order,
	})
}

func (s *Server) handleUnitInfo(w http.ResponseWriter, r *http.Request) {
	infos := make([]snapshot.Info, 0, len(units.Order))
	for _, unit := range units.Order {
		info, err := s.Store.Info(snapshot.UnitScope(unit))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleUnitData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !units.IsKnown(id) {
		http.Error(w, "unknown unit: "+id, http.StatusNotFound)
		return
	}
	s.readSnapshot(w, snapshot.UnitScope(id))
}

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Store.Read(snapshot.ScopeGlobal)
	if errors.Is(err, snapshot.ErrNotInitialized) {
		writeJSON(w, http.StatusServiceUnavailable, notReady{
			Initialized: false,
			Scope:       snapshot.ScopeGlobal,
			Message:     "no refresh has completed yet",
		})
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	refs := snap.References
	if term := strings.ToLower(r.URL.Query().Get("search")); term != "" {
		filtered := refs[:0:0]
		for _, ref := range refs {
			if strings.Contains(strings.ToLower(ref.Material), term) ||
				strings.Contains(strings.ToLower(ref.Description), term) {
				filtered = append(filtered, ref)
			}
		}
		refs = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(refs),
		"data":  refs,
	})
}

func (s *Server) handleReferenceByMaterial(w http.ResponseWriter, r *http.Request) {
	material := r.PathValue("material")
	snap, err := s.Store.Read(snapshot.ScopeGlobal)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotInitialized) {
			writeJSON(w, http.StatusServiceUnavailable, notReady{Initialized: false, Scope: snapshot.ScopeGlobal, Message: "no refresh has completed yet"})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, ref := range snap.References {
		if ref.Material == material {
			writeJSON(w, http.StatusOK, ref)
			return
		}
	}
	http.Error(w, "reference not found: "+material, http.StatusNotFound)
}

func (s *Server) handleFormList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := s.Forms.List(r.Context(), forms.ListOptions{
		Status:  q.Get("status"),
		Machine: q.Get("machine"),
		Search:  q.Get("search"),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if out == nil {
		out = []forms.Form{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFormCreate(w http.ResponseWriter, r *http.Request) {
	var f forms.Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Forms.Create(r.Context(), &f); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) formID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad form id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handleFormGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	f, err := s.Forms.Get(r.Context(), id)
	if errors.Is(err, forms.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFormUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	var f forms.Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.ID = id
	err := s.Forms.Update(r.Context(), &f)
	if errors.Is(err, forms.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFormDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.formID(w, r)
	if !ok {
		return
	}
	err := s.Forms.Delete(r.Context(), id)
	if errors.Is(err, forms.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"scheduler": s.Sched.Statuses(),
	})
}
