package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/neuracity/risk-index-service/internal/batch"
	"github.com/neuracity/risk-index-service/internal/risk"
	"github.com/neuracity/risk-index-service/internal/storage"
)

const (
	defaultListLimit = 1000
	maxListLimit     = 5000

	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filter storage.BlockFilter
	if v := q.Get("category"); v != "" {
		c := risk.Category(v)
		if c.Rank() < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", v))
			return
		}
		filter.Category = c
	}
	var err error
	if filter.MinRisk, err = parseRiskBound(q.Get("min_risk"), "min_risk"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.MaxRisk, err = parseRiskBound(q.Get("max_risk"), "max_risk"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	blocks, err := s.store.ListBlocks(r.Context(), filter)
	if err != nil {
		s.logger.Error("list blocks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch blocks")
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleBlocksInBounds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	bounds := storage.Bounds{}
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat_min", &bounds.MinLat},
		{"lat_max", &bounds.MaxLat},
		{"lng_min", &bounds.MinLng},
		{"lng_max", &bounds.MaxLng},
	} {
		v := q.Get(p.name)
		if v == "" {
			writeError(w, http.StatusBadRequest, p.name+" is required")
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be a number")
			return
		}
		*p.dst = f
	}
	if err := risk.ValidateCoordinates(bounds.MinLat, bounds.MinLng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := risk.ValidateCoordinates(bounds.MaxLat, bounds.MaxLng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if bounds.MinLat > bounds.MaxLat || bounds.MinLng > bounds.MaxLng {
		writeError(w, http.StatusBadRequest, "bounds min must not exceed max")
		return
	}

	blocks, err := s.store.BlocksInBounds(r.Context(), bounds)
	if err != nil {
		s.logger.Error("blocks in bounds failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch blocks")
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	blockID := r.PathValue("block_id")

	block, err := s.store.GetBlock(r.Context(), blockID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("block %s not found", blockID))
		return
	}
	if err != nil {
		s.logger.Error("get block failed", "block_id", blockID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch block")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleListFactors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.MeasurementFilter{BlockID: q.Get("block_id")}
	if v := q.Get("factor_type"); v != "" {
		factor, err := risk.ParseFactor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Factor = factor
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	measurements, err := s.store.ListMeasurements(r.Context(), filter)
	if err != nil {
		s.logger.Error("list measurements failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch measurements")
		return
	}
	writeJSON(w, http.StatusOK, measurements)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	blockID := r.PathValue("block_id")

	days := defaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be an integer in [1,%d]", maxHistoryDays))
			return
		}
		days = n
	}

	snapshots, err := s.store.ListSnapshots(r.Context(), blockID, days)
	if err != nil {
		s.logger.Error("list snapshots failed", "block_id", blockID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	cfg, ok := s.configs.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("config %s not found", name))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// recalculateRequest carries one block's raw factor data. The factor
// payloads embed directly, so the body shape matches the raw measurement
// envelope field for field.
type recalculateRequest struct {
	BlockID string  `json:"block_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	risk.RawInputs

	ConfigName            string `json:"config_name"`
	ApplySpatialSmoothing bool   `json:"apply_spatial_smoothing"`
	SaveToDatabase        bool   `json:"save_to_database"`
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	req.Emergency.ApplySamples()
	req.Traffic.ApplySamples()

	cfg, ok := s.configs.Get(req.ConfigName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("config %s not found", req.ConfigName))
		return
	}

	profile, err := s.driver.RecalculateBlock(r.Context(), req.BlockID, req.Lat, req.Lng,
		req.RawInputs, cfg, req.ApplySpatialSmoothing, req.SaveToDatabase)
	if errors.Is(err, risk.ErrInvalidCoordinate) || errors.Is(err, risk.ErrScoreOutOfRange) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("recalculate failed", "block_id", req.BlockID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to recalculate block")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type recalculateAllResponse struct {
	RunID           string   `json:"run_id"`
	BlocksAttempted int      `json:"blocks_attempted"`
	BlocksUpdated   int      `json:"blocks_updated"`
	BlocksFailed    int      `json:"blocks_failed"`
	FailedBlockIDs  []string `json:"failed_block_ids,omitempty"`
	AlertsSent      int      `json:"alerts_sent"`
	ConfigUsed      string   `json:"config_used"`
}

func (s *Server) handleRecalculateAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	configName := q.Get("config_name")
	cfg, ok := s.configs.Get(configName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("config %s not found", configName))
		return
	}

	smooth := true
	if v := q.Get("apply_spatial_smoothing"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "apply_spatial_smoothing must be a boolean")
			return
		}
		smooth = b
	}

	bounds, err := optionalBounds(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.driver.Run(r.Context(), batch.Request{Bounds: bounds, Config: cfg, Smooth: smooth})
	if err != nil {
		s.logger.Error("recalculation run failed", "run_id", result.RunID, "error", err)
		writeError(w, http.StatusInternalServerError, "recalculation run failed")
		return
	}

	resp := recalculateAllResponse{
		RunID:           result.RunID,
		BlocksAttempted: result.Attempted,
		BlocksUpdated:   result.Succeeded,
		BlocksFailed:    result.Failed,
		AlertsSent:      result.AlertsSent,
		ConfigUsed:      cfg.Name,
	}
	for _, be := range result.Errors {
		resp.FailedBlockIDs = append(resp.FailedBlockIDs, be.BlockID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.store.ListBlocks(r.Context(), storage.BlockFilter{})
	if err != nil {
		s.logger.Error("list blocks failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, risk.ComputeStatistics(blocks))
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, fmt.Errorf("limit must be an integer in [1,%d]", maxListLimit)
	}
	return n, nil
}

func parseRiskBound(v, name string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return nil, fmt.Errorf("%s must be a number in [0,1]", name)
	}
	return &f, nil
}

// optionalBounds reads the lat/lng box query params; either all four are
// present or none.
func optionalBounds(q url.Values) (*storage.Bounds, error) {
	names := []string{"lat_min", "lat_max", "lng_min", "lng_max"}
	present := 0
	for _, n := range names {
		if q.Get(n) != "" {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(names) {
		return nil, errors.New("lat_min, lat_max, lng_min, lng_max must be supplied together")
	}

	var b storage.Bounds
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat_min", &b.MinLat},
		{"lat_max", &b.MaxLat},
		{"lng_min", &b.MinLng},
		{"lng_max", &b.MaxLng},
	} {
		f, err := strconv.ParseFloat(q.Get(p.name), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", p.name)
		}
		*p.dst = f
	}
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return nil, errors.New("bounds min must not exceed max")
	}
	return &b, nil
}
