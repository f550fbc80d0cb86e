package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/BearBump/MarketBox/config"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/BearBump/MarketBox/internal/services/offers"
	"github.com/BearBump/MarketBox/internal/services/ordersync"
	"github.com/BearBump/MarketBox/internal/services/shipsync"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	orders *ordersync.Service
	ships  *shipsync.Service
	offers *offers.Service
	store  workerStorage
	cfg    *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{}
		if opts.orders != nil {
			out["orders"] = opts.orders.Stats()
		}
		if opts.ships != nil {
			out["shipments"] = opts.ships.Stats()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		accounts := make([]string, 0, len(opts.cfg.Market.Accounts))
		for name := range opts.cfg.Market.Accounts {
			accounts = append(accounts, name)
		}
		out := map[string]any{
			"accounts":                 accounts,
			"orderPollIntervalSeconds": opts.cfg.Market.OrderPollIntervalSeconds,
			"orderPageSize":            opts.cfg.Market.OrderPageSize,
			"orderImportStates":        opts.cfg.Market.OrderImportStates,
			"orderAutoAccept":          opts.cfg.Market.OrderAutoAccept,
			"orderRateLimitPerMinute":  opts.cfg.Market.OrderRateLimitPerMinute,
			"shipPollIntervalSeconds":  opts.cfg.Market.ShipPollIntervalSeconds,
			"shipBatchSize":            opts.cfg.Market.ShipBatchSize,
			"shipLeaseSeconds":         opts.cfg.Market.ShipLeaseSeconds,
			"offersCacheTTLSeconds":    opts.cfg.Market.OffersCacheTTLSeconds,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.orders != nil {
			opts.orders.Trigger()
		}
		if opts.ships != nil {
			opts.ships.Trigger()
		}
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/orders/{account}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.store == nil {
			http.Error(w, `{"error":"storage not wired"}`, http.StatusServiceUnavailable)
			return
		}
		account := chi.URLParam(r, "account")
		state := r.URL.Query().Get("state")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		list, err := opts.store.ListOrders(r.Context(), account, state, limit, offset)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"orders": list})
	})

	r.Get("/offers/{account}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.offers == nil {
			http.Error(w, `{"error":"offers not wired"}`, http.StatusServiceUnavailable)
			return
		}
		account := chi.URLParam(r, "account")
		list, err := opts.offers.All(r.Context(), account)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"offers": list})
	})

	r.Post("/offers/{account}/update", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.offers == nil {
			http.Error(w, `{"error":"offers not wired"}`, http.StatusServiceUnavailable)
			return
		}
		account := chi.URLParam(r, "account")

		var updates []models.OfferUpdate
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}
		importID, err := opts.offers.Update(r.Context(), account, updates)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"importId": importID})
	})

	// Serve swagger with no-cache + cachebuster.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
