package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/stablevault/internal/state"
	"github.com/elys-network/stablevault/internal/types"
)

const apyLookback = 366 * 24 * time.Hour

type vaultResponse struct {
	Address         string                `json:"address"`
	TotalSupply     sdkmath.Int           `json:"total_supply"`
	TotalValue      sdkmath.Int           `json:"total_value"`
	SupplyIndex     sdkmath.Int           `json:"supply_index"`
	Rebase          types.RebaseState     `json:"rebase"`
	Parameters      types.VaultParameters `json:"parameters"`
	Assets          []types.Asset         `json:"assets"`
	Strategies      []string              `json:"strategies"`
	ReserveStrategy string                `json:"reserve_strategy,omitempty"`
	Timestamp       time.Time             `json:"timestamp"`
}

type strategyResponse struct {
	Address    string                 `json:"address"`
	Reserve    bool                   `json:"reserve"`
	DefaultFor []string               `json:"default_for"`
	Holdings   map[string]sdkmath.Int `json:"holdings"`
}

type harvestRequest struct {
	Rewardee string `json:"rewardee"`
}

// handleHealth returns server health along with the state of the last keeper cycle.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	dbHealthy := false
	cycleInfo := map[string]interface{}{
		"current_cycle":     0,
		"last_cycle_time":   nil,
		"last_cycle_status": "unknown",
	}
	if ws.history != nil {
		if err := ws.history.Healthy(); err != nil {
			hasErrors = true
		} else {
			dbHealthy = true
		}
		if cycles, err := ws.history.RecentCycles(r.Context(), 1); err == nil && len(cycles) > 0 {
			last := cycles[0]
			cycleInfo = map[string]interface{}{
				"current_cycle":     last.CycleNumber,
				"last_cycle_time":   last.Timestamp,
				"last_cycle_status": last.Status,
			}
			hasErrors = hasErrors || last.Status == "failed"
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": ws.now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":           runtime.Version(),
			"goroutines_count":  runtime.NumGoroutine(),
			"alloc_bytes":       memStats.Alloc,
			"sys_bytes":         memStats.Sys,
			"gc_cycles":         memStats.NumGC,
			"total_alloc_bytes": memStats.TotalAlloc,
		},
		"vault_status": map[string]interface{}{
			"address":          ws.vault.Address(),
			"impaired":         ws.vault.RebaseState().Impaired,
			"database_healthy": dbHealthy,
			"cycle_info":       cycleInfo,
		},
	}
	ws.writeJSONResponse(w, statusCode, response)
}

func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	value, err := ws.vault.TotalValue(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get vault value")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute vault value")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, vaultResponse{
		Address:         ws.vault.Address(),
		TotalSupply:     ws.vault.TotalSupply(),
		TotalValue:      value,
		SupplyIndex:     ws.vault.SupplyIndex(),
		Rebase:          ws.vault.RebaseState(),
		Parameters:      ws.vault.Parameters(),
		Assets:          ws.vault.Assets(),
		Strategies:      ws.vault.StrategyAddresses(),
		ReserveStrategy: ws.vault.ReserveStrategy(),
		Timestamp:       ws.now().UTC(),
	})
}

// handleGetVaultSummary returns vault statistics from recorded cycles
func (ws *WebServer) handleGetVaultSummary(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	summary, err := ws.history.Summary(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get vault summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve vault summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleGetCollateral(w http.ResponseWriter, r *http.Request) {
	collateral, err := ws.vault.Collateral(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get collateral")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve collateral")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"collateral": collateral,
		"count":      len(collateral),
	})
}

func (ws *WebServer) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	collateral, err := ws.vault.Collateral(r.Context())
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get collateral")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve strategies")
		return
	}

	reserve := ws.vault.ReserveStrategy()
	out := make([]strategyResponse, 0)
	for _, addr := range ws.vault.StrategyAddresses() {
		s := strategyResponse{
			Address:    addr,
			Reserve:    addr == reserve,
			DefaultFor: []string{},
			Holdings:   map[string]sdkmath.Int{},
		}
		for _, a := range ws.vault.Assets() {
			if a.DefaultStrategy == addr {
				s.DefaultFor = append(s.DefaultFor, a.Denom)
			}
		}
		sort.Strings(s.DefaultFor)
		for _, c := range collateral {
			if amt, ok := c.Strategies[addr]; ok && !amt.IsNil() && amt.IsPositive() {
				s.Holdings[c.Denom] = amt
			}
		}
		out = append(out, s)
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategies": out,
		"count":      len(out),
	})
}

func (ws *WebServer) handleGetRewardTokens(w http.ResponseWriter, r *http.Request) {
	if ws.harvester == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Harvester not configured")
		return
	}
	cfgs := ws.harvester.RewardTokenConfigs()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"target_asset":  ws.harvester.TargetAsset(),
		"reward_tokens": cfgs,
		"count":         len(cfgs),
	})
}

// handleHarvest runs a public harvest of one strategy. The rewardee receives the incentive.
func (ws *WebServer) handleHarvest(w http.ResponseWriter, r *http.Request) {
	if ws.harvester == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Harvester not configured")
		return
	}
	var req harvestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil || req.Rewardee == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Request body must name a rewardee")
		return
	}
	strategy := mux.Vars(r)["strategy"]

	res, err := ws.harvester.PublicHarvestAndSwap(r.Context(), req.Rewardee, strategy)
	if err != nil {
		ws.logger.Warn().Err(err).Str("strategy", strategy).Str("rewardee", req.Rewardee).Msg("Public harvest failed")
		ws.writeErrorResponse(w, statusFor(err), err.Error())
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"strategy":  strategy,
		"collected": res.Collected,
		"swaps":     res.Swaps,
	})
}

// handleGetCycles returns recent keeper cycles
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := ws.history.RecentCycles(r.Context(), limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}
	if cycles == nil {
		cycles = []types.CycleSnapshot{}
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

// handleGetCycle returns a specific cycle by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	id := mux.Vars(r)["id"]

	cycle, err := ws.history.Cycle(r.Context(), id)
	if err != nil {
		ws.logger.Error().Err(err).Str("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	cycles, err := ws.history.RecentCycles(r.Context(), 1)
	if err != nil || len(cycles) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycles[0])
}

// handleGetAPY reports trailing APYs derived from the recorded supply index.
func (ws *WebServer) handleGetAPY(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	now := ws.now()
	points, err := ws.history.IndexHistory(r.Context(), now.Add(-apyLookback))
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get index history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve index history")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"supply_index": ws.vault.SupplyIndex(),
		"apy":          state.ComputeAPYs(points, now),
		"points":       len(points),
		"timestamp":    now.UTC(),
	})
}

// handleGetEvents lists stored vault and harvester notifications, newest first. ?type= filters by
// event type.
func (ws *WebServer) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}
	eventType := r.URL.Query().Get("type")

	events, err := ws.history.RecentEvents(r.Context(), eventType, limit)
	if err != nil {
		ws.logger.Error().Err(err).Str("type", eventType).Msg("Failed to get events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve events")
		return
	}
	if events == nil {
		events = []state.StoredEvent{}
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	})
}

func (ws *WebServer) requireHistory(w http.ResponseWriter) bool {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Cycle history not available")
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownStrategy):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNotGovernor):
		return http.StatusForbidden
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, types.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, types.ErrSlippageExceeded),
		errors.Is(err, types.ErrUnsupportedAsset),
		errors.Is(err, types.ErrInsufficientLiquidity),
		errors.Is(err, types.ErrNoPrice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
