package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dmv-price-tracker/internal/dataset"
	"github.com/sells-group/dmv-price-tracker/internal/output"
	"github.com/sells-group/dmv-price-tracker/internal/spatial"
)

const (
	defaultNearbyK = 10
	maxNearbyK     = 100
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the combined dataset and spatial queries over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(newArtifact(cfg.Output.Path)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("artifact", cfg.Output.Path))
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

func buildRouter(a *artifact) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/output/aggregated_data.json", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := a.load(); err != nil {
			writeError(w, http.StatusNotFound, "artifact not available")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		http.ServeFile(w, r, a.path)
	})

	r.Get("/api/nearby", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			writeError(w, http.StatusBadRequest, "lat and lon are required numbers")
			return
		}
		k := defaultNearbyK
		if s := q.Get("k"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "k must be a positive integer")
				return
			}
			k = min(n, maxNearbyK)
		}

		t, idx, err := a.load()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "artifact not available")
			return
		}
		writeTable(w, selectRows(t, idx.Nearest(lon, lat, k), true))
	})

	r.Get("/api/within", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var box spatial.BBox
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"min_lng", &box.MinLng},
			{"min_lat", &box.MinLat},
			{"max_lng", &box.MaxLng},
			{"max_lat", &box.MaxLat},
		} {
			v, err := strconv.ParseFloat(q.Get(f.name), 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, f.name+" is required")
				return
			}
			*f.dst = v
		}

		t, idx, err := a.load()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "artifact not available")
			return
		}
		writeTable(w, selectRows(t, idx.Within(box), false))
	})

	return r
}

func writeTable(w http.ResponseWriter, t *dataset.Table) {
	data, err := output.Encode(t, output.FormatJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

