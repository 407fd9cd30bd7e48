// Package main runs the token-forge service: the in-memory registry and
// ledgers, the archive that mirrors them into PostgreSQL/ClickHouse, the
// WebSocket event feed, and the JSON endpoints the deployment front end
// calls.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"token-forge/internal/archive"
	"token-forge/internal/authority"
	"token-forge/internal/domain"
	"token-forge/internal/eventfeed"
	"token-forge/internal/ledger"
	"token-forge/internal/observability"
	"token-forge/internal/registry"
	"token-forge/internal/storage"
	chstore "token-forge/internal/storage/clickhouse"
	"token-forge/internal/storage/memory"
	"token-forge/internal/storage/migrations"
	pgstore "token-forge/internal/storage/postgres"
)

// Server holds all components of the service.
type Server struct {
	registry *registry.Registry
	stores   *allStores
	feed     *eventfeed.Hub
	logger   *log.Logger
	started  time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	deploymentStore storage.DeploymentStore
	eventStore      storage.EventStore
	supplyStore     storage.SupplyTimeseriesStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", true, "Apply database migrations at startup")
	sampleInterval := flag.Duration("sample-interval", time.Minute, "Supply sampling interval")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	recorder := archive.NewRecorder(stores.deploymentStore, stores.eventStore,
		log.New(os.Stdout, "[archive] ", log.LstdFlags|log.Lshortfile))
	feed := eventfeed.NewHub(log.New(os.Stdout, "[feed] ", log.LstdFlags|log.Lshortfile))
	defer feed.Close()

	reg := registry.New(registry.Options{
		Sink: fanoutSink(recorder.Sink(), feed.Publish),
	})

	sampler := archive.NewSampler(archive.SamplerOptions{
		Source:   reg,
		Store:    stores.supplyStore,
		Interval: *sampleInterval,
		Logger:   log.New(os.Stdout, "[sampler] ", log.LstdFlags|log.Lshortfile),
	})
	go func() {
		if err := sampler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("sampler stopped: %v", err)
		}
	}()

	server := &Server{
		registry: reg,
		stores:   stores,
		feed:     feed,
		logger:   logger,
		started:  time.Now(),
	}

	httpServer := &http.Server{
		Addr:    *listenAddr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *listenAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			deploymentStore: memory.NewDeploymentStore(),
			eventStore:      memory.NewEventStore(),
			supplyStore:     memory.NewSupplyTimeseriesStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			chConn.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	}

	stores := &allStores{
		deploymentStore: pgstore.NewDeploymentStore(pool),
		eventStore:      pgstore.NewEventStore(pool),
		supplyStore:     chstore.NewSupplyTimeseriesStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// fanoutSink forwards every event to all sinks, in order.
func fanoutSink(sinks ...ledger.EventSink) ledger.EventSink {
	return func(ev domain.Event) {
		for _, sink := range sinks {
			sink(ev)
		}
	}
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/ws", s.feed)

	mux.HandleFunc("POST /tokens", s.handleCreate)
	mux.HandleFunc("GET /tokens", s.handleList)
	mux.HandleFunc("GET /tokens/{id}", s.handleToken)
	mux.HandleFunc("GET /tokens/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /tokens/{id}/supply", s.handleSupplyHistory)
	mux.HandleFunc("GET /tokens/{id}/balance/{address}", s.handleBalance)
	mux.HandleFunc("GET /tokens/{id}/allowance/{owner}/{spender}", s.handleAllowance)
	mux.HandleFunc("POST /tokens/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /tokens/{id}/mint", s.handleMint)
	mux.HandleFunc("POST /tokens/{id}/transfer", s.handleTransfer)
	mux.HandleFunc("POST /tokens/{id}/authority", s.handleAuthority)

	return mux
}

// createRequest is the deployment form payload.
type createRequest struct {
	Creator           string `json:"creator"`
	Name              string `json:"name"`
	Symbol            string `json:"symbol"`
	Decimals          uint8  `json:"decimals"`
	InitialSupply     string `json:"initial_supply"`
	MaxSupply         string `json:"max_supply"`
	AuthorityPolicy   string `json:"authority_policy"`
	SpecificAuthority string `json:"specific_authority,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	creator, err := parseIdentity(req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	params := domain.TokenParams{
		Name:            req.Name,
		Symbol:          req.Symbol,
		Decimals:        req.Decimals,
		AuthorityPolicy: domain.MintAuthorityPolicy(req.AuthorityPolicy),
	}
	if !params.AuthorityPolicy.IsValid() {
		writeError(w, http.StatusBadRequest, authority.ErrInvalidPolicy)
		return
	}
	if params.InitialSupply, err = parseAmount(req.InitialSupply); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.MaxSupply != "" {
		if params.MaxSupply, err = parseAmount(req.MaxSupply); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.SpecificAuthority != "" {
		if params.SpecificAuthority, err = parseIdentity(req.SpecificAuthority); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	id, err := s.registry.Create(creator, params)
	if err != nil {
		observability.RecordCreateRejected(err.Error())
		writeError(w, statusFor(err), err)
		return
	}

	observability.RecordTokenCreated()
	writeJSON(w, http.StatusCreated, map[string]string{"ledger_id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if creator := r.URL.Query().Get("creator"); creator != "" {
		addr, err := parseIdentity(creator)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"creator": creator,
			"ledgers": s.registry.LedgersByCreator(addr),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   s.registry.LedgerCount(),
		"ledgers": s.registry.AllLedgers(),
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := map[string]any{
		"ledger_id":            l.ID(),
		"name":                 l.Name(),
		"symbol":               l.Symbol(),
		"decimals":             l.Decimals(),
		"total_supply":         formatAmount(l.TotalSupply()),
		"total_supply_display": displayAmount(l.TotalSupply(), l.Decimals()),
		"max_supply":           formatAmount(l.MaxSupply()),
		"holders":              l.HolderCount(),
	}
	if auth, ok := l.MintAuthority(); ok {
		resp["mint_authority"] = auth.String()
	} else {
		resp["mint_authority"] = nil
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	// With a time range, serve from the archive; otherwise from the
	// in-memory log.
	start, end, ranged, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if ranged {
		records, err := s.stores.eventStore.GetByTimeRange(r.Context(), l.ID(), start, end)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	events := l.Events()
	records := make([]*domain.EventRecord, len(events))
	for i, ev := range events {
		records[i] = domain.NewEventRecord(ev)
	}
	writeJSON(w, http.StatusOK, records)
}

// supplyPointResponse is one sampled supply observation.
type supplyPointResponse struct {
	TimestampMs int64  `json:"timestamp_ms"`
	TotalSupply string `json:"total_supply"`
	MaxSupply   string `json:"max_supply"`
	Holders     uint32 `json:"holders"`
}

func (s *Server) handleSupplyHistory(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	start, end, ranged, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var points []*domain.SupplyPoint
	if ranged {
		points, err = s.stores.supplyStore.GetByTimeRange(r.Context(), l.ID(), start, end)
	} else {
		points, err = s.stores.supplyStore.GetByLedgerID(r.Context(), l.ID())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := make([]supplyPointResponse, len(points))
	for i, p := range points {
		resp[i] = supplyPointResponse{
			TimestampMs: p.TimestampMs,
			TotalSupply: formatAmount(p.TotalSupply),
			MaxSupply:   formatAmount(p.MaxSupply),
			Holders:     p.Holders,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseTimeRange reads optional start/end query params in unix
// milliseconds. ranged is false when neither is set.
func parseTimeRange(r *http.Request) (start, end int64, ranged bool, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		return 0, 0, false, nil
	}

	end = math.MaxInt64
	if startStr != "" {
		if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
			return 0, 0, false, fmt.Errorf("invalid start %q: %w", startStr, err)
		}
	}
	if endStr != "" {
		if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
			return 0, 0, false, fmt.Errorf("invalid end %q: %w", endStr, err)
		}
	}
	return start, end, true, nil
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	holder, err := parseIdentity(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance := l.BalanceOf(holder)
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id":       l.ID(),
		"address":         holder.String(),
		"balance":         formatAmount(balance),
		"balance_display": displayAmount(balance, l.Decimals()),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	owner, err := parseIdentity(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := parseIdentity(r.PathValue("spender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	allowed := l.Allowance(owner, spender)
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id": l.ID(),
		"owner":     owner.String(),
		"spender":   spender.String(),
		"allowance": formatAmount(allowed),
		"infinite":  allowed == ledger.InfiniteAllowance,
	})
}

// approveRequest sets an allowance to an absolute amount.
type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	owner, spender, amount, err := parseMove(req.Owner, req.Spender, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := l.Approve(owner, spender, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id": l.ID(),
		"owner":     owner.String(),
		"spender":   spender.String(),
		"allowance": formatAmount(amount),
	})
}

// mintRequest is the mint dialog payload.
type mintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	caller, to, amount, err := parseMove(req.Caller, req.To, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := l.Mint(caller, to, amount); err != nil {
		observability.RecordMint("error")
		writeError(w, statusFor(err), err)
		return
	}

	observability.RecordMint("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id":    l.ID(),
		"total_supply": formatAmount(l.TotalSupply()),
	})
}

// transferRequest is the transfer payload. Spender, when set, makes this
// a delegated transfer drawing on (from, spender) allowance.
type transferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Spender string `json:"spender,omitempty"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	from, to, amount, err := parseMove(req.From, req.To, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Spender != "" {
		spender, err := parseIdentity(req.Spender)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		err = l.TransferFrom(spender, from, to, amount)
	} else {
		err = l.Transfer(from, to, amount)
	}
	if err != nil {
		observability.RecordTransfer("error")
		writeError(w, statusFor(err), err)
		return
	}

	observability.RecordTransfer("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id": l.ID(),
		"from":      from.String(),
		"to":        to.String(),
		"amount":    formatAmount(amount),
	})
}

// authorityRequest reassigns the mint authority.
type authorityRequest struct {
	Caller       string `json:"caller"`
	NewAuthority string `json:"new_authority"`
}

func (s *Server) handleAuthority(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Ledger(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var req authorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	caller, err := parseIdentity(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	newAuthority, err := parseIdentity(req.NewAuthority)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := l.UpdateMintAuthority(caller, newAuthority); err != nil {
		observability.RecordAuthorityUpdate("error")
		writeError(w, statusFor(err), err)
		return
	}

	observability.RecordAuthorityUpdate("success")
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger_id":      l.ID(),
		"mint_authority": newAuthority.String(),
	})
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	LedgerCount int    `json:"ledger_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:      "running",
		Uptime:      time.Since(s.started).String(),
		LedgerCount: s.registry.LedgerCount(),
	})
}

// parseIdentity decodes a base58 address and checks it is a plausible
// signing identity.
func parseIdentity(s string) (domain.Address, error) {
	addr, err := domain.ParseAddress(s)
	if err != nil {
		return domain.Address{}, err
	}
	if !addr.OnCurve() {
		return domain.Address{}, fmt.Errorf("%w: not a valid ed25519 point", domain.ErrInvalidAddress)
	}
	return addr, nil
}

func parseMove(callerStr, toStr, amountStr string) (caller, to domain.Address, amount uint64, err error) {
	if caller, err = parseIdentity(callerStr); err != nil {
		return
	}
	if to, err = parseIdentity(toStr); err != nil {
		return
	}
	amount, err = parseAmount(amountStr)
	return
}

func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// displayAmount renders a raw integer amount in human decimal form,
// e.g. 1500000 with 6 decimals -> "1.5".
func displayAmount(v uint64, decimals uint8) string {
	if decimals == 0 {
		return strconv.FormatUint(v, 10)
	}
	s := strconv.FormatUint(v, 10)
	d := int(decimals)
	if len(s) <= d {
		s = strings.Repeat("0", d-len(s)+1) + s
	}
	whole, frac := s[:len(s)-d], s[len(s)-d:]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownLedger):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
