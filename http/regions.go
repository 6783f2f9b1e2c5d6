package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/tileindex/featureflag"
	"github.com/aukilabs/tileindex/models"
	"github.com/aukilabs/tileindex/quadtree"
	"github.com/aukilabs/tileindex/tile"
	"github.com/segmentio/encoding/json"
)

// DefaultQueryLimit is the number of regions returned by a query without an
// explicit limit.
const DefaultQueryLimit = 1000

// MaxRequestBodySize is the maximum size in bytes of a region request body.
const MaxRequestBodySize = 1 << 20

// RegionRequest is the body of region and tile creation requests. Box is
// ignored when creating a tile region.
type RegionRequest struct {
	Source string            `json:"source"`
	Box    quadtree.Box      `json:"box"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// QueryResponse is the body returned by overlap queries.
type QueryResponse struct {
	Regions   []*models.Region `json:"regions"`
	Completed bool             `json:"completed"`
}

// RegionHandler serves the region index API.
type RegionHandler struct {
	Store        *models.RegionStore
	FeatureFlags featureflag.FeatureFlag

	// The maximum number of regions a query can return. Defaults to
	// DefaultQueryLimit.
	MaxQueryLimit int
}

// Register adds the region routes to mux.
func (h *RegionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /regions", h.HandleAddRegion)
	mux.HandleFunc("DELETE /regions", h.HandleClearRegions)
	mux.HandleFunc("GET /regions/{id}", h.HandleGetRegion)
	mux.HandleFunc("DELETE /regions/{id}", h.HandleRemoveRegion)
	mux.HandleFunc("GET /query", h.HandleQuery)
	mux.HandleFunc("POST /tiles/{z}/{x}/{y}", h.HandleAddTile)
	mux.HandleFunc("GET /tiles/{z}/{x}/{y}/regions", h.HandleQueryTile)
	mux.HandleFunc("GET /stats", h.HandleStats)
}

func (h *RegionHandler) HandleAddRegion(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRegionRequest(w, r, true)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	region, err := h.Store.Add(models.Region{
		Source: req.Source,
		Box:    req.Box,
		Tags:   req.Tags,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, region)
}

func (h *RegionHandler) HandleAddTile(w http.ResponseWriter, r *http.Request) {
	id, err := tileFromPath(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	req, err := decodeRegionRequest(w, r, false)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	region, err := h.Store.AddTile(id, req.Source, req.Tags)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, region)
}

func (h *RegionHandler) HandleGetRegion(w http.ResponseWriter, r *http.Request) {
	id, err := regionIDFromPath(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	region, ok := h.Store.Get(id)
	if !ok {
		WriteError(w, r, regionNotFoundError(id))
		return
	}
	WriteJSON(w, http.StatusOK, region)
}

func (h *RegionHandler) HandleRemoveRegion(w http.ResponseWriter, r *http.Request) {
	if err := h.checkDeleteEnabled(); err != nil {
		WriteError(w, r, err)
		return
	}

	id, err := regionIDFromPath(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	removed, err := h.Store.Remove(id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if !removed {
		WriteError(w, r, regionNotFoundError(id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegionHandler) HandleClearRegions(w http.ResponseWriter, r *http.Request) {
	if err := h.checkDeleteEnabled(); err != nil {
		WriteError(w, r, err)
		return
	}

	h.Store.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegionHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var coords [4]int
	for i, name := range [...]string{"x1", "y1", "x2", "y2"} {
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			WriteError(w, r, errors.New("invalid query coordinate").
				WithType(ErrTypeBadRequest).
				WithTag("param", name).
				WithTag("value", q.Get(name)))
			return
		}
		coords[i] = v
	}

	limit, err := h.parseLimit(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	shape, err := h.parseShape(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	box := quadtree.NewBox(coords[0], coords[1], coords[2], coords[3])
	query := h.Store.Query
	if shape {
		query = h.Store.QueryShape
	}

	regions, completed, err := query(box, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeQueryResponse(w, regions, completed)
}

func (h *RegionHandler) HandleQueryTile(w http.ResponseWriter, r *http.Request) {
	id, err := tileFromPath(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	limit, err := h.parseLimit(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	shape, err := h.parseShape(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	regions, completed, err := h.Store.QueryTile(id, shape, limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeQueryResponse(w, regions, completed)
}

func (h *RegionHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats()
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *RegionHandler) checkDeleteEnabled() error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableRegionDelete) {
		return errors.New("region deletion is disabled").
			WithType(ErrTypeFeatureDisabled).
			WithTag("flag", featureflag.FlagDisableRegionDelete)
	}
	return nil
}

func (h *RegionHandler) maxQueryLimit() int {
	if h.MaxQueryLimit <= 0 {
		return DefaultQueryLimit
	}
	return h.MaxQueryLimit
}

func (h *RegionHandler) parseLimit(r *http.Request) (int, error) {
	maxLimit := h.maxQueryLimit()

	v := r.URL.Query().Get("limit")
	if v == "" {
		return maxLimit, nil
	}

	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer").
			WithType(ErrTypeBadRequest).
			WithTag("limit", v)
	}
	return min(limit, maxLimit), nil
}

func (h *RegionHandler) parseShape(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("shape")
	if v == "" {
		return false, nil
	}

	shape, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("shape must be a boolean").
			WithType(ErrTypeBadRequest).
			WithTag("shape", v)
	}
	if shape && h.FeatureFlags.IsSet(featureflag.FlagDisableShapeSearch) {
		return false, errors.New("shape search is disabled").
			WithType(ErrTypeFeatureDisabled).
			WithTag("flag", featureflag.FlagDisableShapeSearch)
	}
	return shape, nil
}

func decodeRegionRequest(w http.ResponseWriter, r *http.Request, required bool) (RegionRequest, error) {
	var req RegionRequest

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if _, ok := err.(*http.MaxBytesError); ok {
		return req, errors.New("region request body is too large").
			WithType(ErrTypeRequestTooLarge).
			WithTag("limit", MaxRequestBodySize).
			Wrap(err)
	}
	if err != nil {
		return req, errors.New("reading body failed").Wrap(err)
	}
	if len(b) == 0 {
		if required {
			return req, errors.New("missing region request body").
				WithType(ErrTypeBadRequest)
		}
		return req, nil
	}

	if err := json.Unmarshal(b, &req); err != nil {
		return req, errors.New("decoding region request failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return req, nil
}

func regionIDFromPath(r *http.Request) (uint32, error) {
	v := r.PathValue("id")

	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.New("invalid region id").
			WithType(ErrTypeBadRequest).
			WithTag("id", v)
	}
	return uint32(id), nil
}

func tileFromPath(r *http.Request) (tile.ID, error) {
	return tile.Parse(r.PathValue("z") + "/" + r.PathValue("x") + "/" + r.PathValue("y"))
}

func regionNotFoundError(id uint32) error {
	return errors.New("region not found").
		WithType(ErrTypeNotFound).
		WithTag("region_id", id)
}

func writeQueryResponse(w http.ResponseWriter, regions []*models.Region, completed bool) {
	if regions == nil {
		regions = []*models.Region{}
	}

	WriteJSON(w, http.StatusOK, QueryResponse{
		Regions:   regions,
		Completed: completed,
	})
}
