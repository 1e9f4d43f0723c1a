package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/opengov-in/mgnrega-dashboard/internal/districts"
	"github.com/opengov-in/mgnrega-dashboard/internal/export"
	"github.com/opengov-in/mgnrega-dashboard/internal/mgnrega"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		go cleanupExpired(ctx, e.snapshots, time.Hour)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e, cfg.Server.AllowedOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the HTTP API. CORS is open to the configured origins
// because the dashboard frontend is served separately.
func newRouter(e *env, origins []string) http.Handler {
	a := &api{env: e}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/records", a.handleRecords)
		r.Get("/records/all", a.handleRecordsAll)
		r.Get("/monthly", a.handleMonthly)
		r.Get("/districts", a.handleDistricts)
		r.Get("/compare", a.handleCompare)
		r.Get("/locate", a.handleLocate)
		r.Get("/export", a.handleExport)
	})
	return r
}

type api struct {
	env *env
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleRecords(w http.ResponseWriter, r *http.Request) {
	res, err := a.env.Service.Query(r.Context(), queryParams(r))
	writeResult(w, res, err)
}

func (a *api) handleRecordsAll(w http.ResponseWriter, r *http.Request) {
	res, err := a.env.Service.QueryAll(r.Context(), queryParams(r))
	writeResult(w, res, err)
}

func (a *api) handleMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.env.Service.Monthly(r.Context(), mgnrega.MonthlyParams{
		State:    q.Get("state"),
		District: q.Get("district"),
		Month:    q.Get("month"),
		FinYear:  q.Get("finYear"),
		Limit:    intParam(q.Get("limit")),
	})
	writeResult(w, res, err)
}

func (a *api) handleDistricts(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeJSON(w, http.StatusOK, map[string]any{"states": districts.States()})
		return
	}
	ds := districts.List(state)
	if ds == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown state"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "districts": ds})
}

// handleCompare runs the same query for several districts concurrently and
// returns the results keyed by district, for side-by-side charts.
func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	names := splitList(q.Get("districts"))
	if len(names) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "districts must list at least two names"})
		return
	}
	if len(names) > 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at most 6 districts can be compared"})
		return
	}

	results := make([]*mgnrega.Result, len(names))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(3)
	for i, district := range names {
		g.Go(func() error {
			res, err := a.env.Service.Query(gctx, mgnrega.Params{
				State:    q.Get("state"),
				District: district,
				FinYear:  q.Get("finYear"),
				Limit:    intParam(q.Get("limit")),
			})
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		status := http.StatusBadGateway
		if eris.Is(err, mgnrega.ErrNotConfigured) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	byDistrict := make(map[string]*mgnrega.Result, len(names))
	for i, district := range names {
		byDistrict[district] = results[i]
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": byDistrict})
}

func (a *api) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lon are required"})
		return
	}

	place, err := a.env.Geocoder.Reverse(r.Context(), lat, lon)
	if err != nil {
		zap.L().Warn("reverse geocode failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not resolve location"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"place": place,
		"known": districts.Known(place.State),
	})
}

func (a *api) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := a.env.Service.QueryAll(r.Context(), queryParams(r))
	if err != nil {
		writeResult(w, res, err)
		return
	}

	name := exportName(r)
	switch r.URL.Query().Get("format") {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
		if err := export.WriteXLSX(w, "", res.Records); err != nil {
			zap.L().Error("xlsx export failed", zap.Error(err))
		}
	case "csv", "":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
		if err := export.WriteCSV(w, res.Records); err != nil {
			zap.L().Error("csv export failed", zap.Error(err))
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be csv or xlsx"})
	}
}

func queryParams(r *http.Request) mgnrega.Params {
	q := r.URL.Query()
	return mgnrega.Params{
		State:    q.Get("state"),
		District: q.Get("district"),
		FinYear:  q.Get("finYear"),
		Limit:    intParam(q.Get("limit")),
		Offset:   intParam(q.Get("offset")),
	}
}

// writeResult maps a pipeline outcome to an HTTP response. A degraded result
// still carries a body describing what went wrong.
func writeResult(w http.ResponseWriter, res *mgnrega.Result, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case eris.Is(err, mgnrega.ErrNotConfigured):
		writeJSON(w, http.StatusInternalServerError, res)
	default:
		writeJSON(w, http.StatusBadGateway, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func exportName(r *http.Request) string {
	q := r.URL.Query()
	parts := []string{"mgnrega"}
	for _, p := range []string{q.Get("state"), q.Get("district"), q.Get("finYear")} {
		if p != "" {
			parts = append(parts, strings.ReplaceAll(strings.ToLower(p), " ", "-"))
		}
	}
	return strings.Join(parts, "_")
}
