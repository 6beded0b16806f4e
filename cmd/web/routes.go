package main

import (
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/racetime/internal/apperrors"
	"github.com/AdamBeresnev/racetime/internal/config"
	"github.com/AdamBeresnev/racetime/internal/gateway"
	"github.com/AdamBeresnev/racetime/internal/httputil"
	"github.com/AdamBeresnev/racetime/internal/middleware"
	"github.com/AdamBeresnev/racetime/internal/service"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type application struct {
	cfg            config.Config
	sessionManager *scs.SessionManager
	competitions   *service.CompetitionService
	results        *service.ResultsService
	judgeSessions  *gateway.Handler
	gatherer       prometheus.Gatherer
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.New(apperrors.CodeValidation, "invalid "+name)
	}
	return id, nil
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.gatherer, promhttp.HandlerOpts{}))

	// Judge sessions authenticate with a bearer token, not the operator cookie.
	r.Get("/ws/judges/{judgeID}", app.judgeSessions.ServeHTTP)

	r.Get("/competitions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			httputil.Error(w, "invalid competition id", err)
			return
		}
		snapshot, err := app.competitions.Snapshot(r.Context(), id)
		if err != nil {
			httputil.Error(w, "failed to get competition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, snapshot)
	})

	r.Get("/competitions/{id}/ranking", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			httputil.Error(w, "invalid competition id", err)
			return
		}
		mode, err := service.ParseRankingMode(r.URL.Query().Get("mode"))
		if err != nil {
			httputil.Error(w, "invalid ranking mode", err)
			return
		}
		standings, err := app.results.RankCompetition(r.Context(), id, mode)
		if err != nil {
			httputil.Error(w, "failed to rank competition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"competitionId": id,
			"mode":          mode,
			"standings":     standings,
		})
	})

	r.Get("/teams/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			httputil.Error(w, "invalid team id", err)
			return
		}
		result, err := app.results.ComputeTeamResult(r.Context(), id, 0)
		if err != nil {
			httputil.Error(w, "failed to compute team result", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)

		r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			if !middleware.CheckOperatorKey(r.Form.Get("key"), app.cfg.OperatorKey) {
				httputil.Unauthorized(w, "invalid operator key")
				return
			}
			if err := middleware.LogInOperator(app.sessionManager, r); err != nil {
				httputil.InternalServerError(w, "Failed to start operator session", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			if err := app.sessionManager.Destroy(r.Context()); err != nil {
				httputil.InternalServerError(w, "Failed to end operator session", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(app.sessionManager))

			r.Post("/competitions/{id}/start", func(w http.ResponseWriter, r *http.Request) {
				id, err := idParam(r, "id")
				if err != nil {
					httputil.Error(w, "invalid competition id", err)
					return
				}
				competition, err := app.competitions.Start(r.Context(), id)
				if err != nil {
					httputil.Error(w, "failed to start competition", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, competition.Snapshot())
			})

			r.Post("/competitions/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
				id, err := idParam(r, "id")
				if err != nil {
					httputil.Error(w, "invalid competition id", err)
					return
				}
				competition, err := app.competitions.Stop(r.Context(), id)
				if err != nil {
					httputil.Error(w, "failed to stop competition", err)
					return
				}
				httputil.WriteJSON(w, http.StatusOK, competition.Snapshot())
			})
		})
	})

	return r
}
