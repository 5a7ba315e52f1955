// Package server exposes the snapshot read surface, the refresh triggers and
// the form store over HTTP. Readers only ever touch snapshot artifacts;
// nothing here runs the ingestion pipeline synchronously with a page load.
package server

import (
	"net/http"

	"github.com/mbertho/scrapview/internal/metrics"
	"github.com/mbertho/scrapview/internal/utils"
	"github.com/mbertho/scrapview/pkg/forms"
	"github.com/mbertho/scrapview/pkg/refresh"
	"github.com/mbertho/scrapview/pkg/snapshot"
)

type Server struct {
	Store *snapshot.Store
	Sched *refresh.Scheduler
	Forms *forms.DB
	Reg   *metrics.Registry
}

func New(store *snapshot.Store, sched *refresh.Scheduler, formsDB *forms.DB, reg *metrics.Registry) *Server {
	return &Server{Store: store, Sched: sched, Forms: formsDB, Reg: reg}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Global scope
	mux.HandleFunc("GET /api/data", s.handleGlobalData)
	mux.HandleFunc("GET /api/cache/info", s.handleGlobalInfo)
	mux.HandleFunc("POST /api/cache/refresh", s.handleGlobalRefresh)

	// Unit scope family
	mux.HandleFunc("GET /api/units", s.handleUnitList)
	mux.HandleFunc("GET /api/units/info", s.handleUnitInfo)
	mux.HandleFunc("POST /api/units/refresh", s.handleUnitRefresh)
	mux.HandleFunc("GET /api/units/{id}", s.handleUnitData)

	// Material reference catalog (derived from the last global snapshot)
	mux.HandleFunc("GET /api/references", s.handleReferences)
	mux.HandleFunc("GET /api/references/{material}", s.handleReferenceByMaterial)

	// Non-conformity forms
	if s.Forms != nil {
		mux.HandleFunc("GET /api/forms", s.handleFormList)
		mux.HandleFunc("POST /api/forms", s.handleFormCreate)
		mux.HandleFunc("GET /api/forms/{id}", s.handleFormGet)
		mux.HandleFunc("PUT /api/forms/{id}", s.handleFormUpdate)
		mux.HandleFunc("DELETE /api/forms/{id}", s.handleFormDelete)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	if s.Reg != nil {
		mux.Handle("GET /metrics", s.Reg.Handler())
	}

	return mux
}

func (s *Server) Start(addr string) error {
	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}
