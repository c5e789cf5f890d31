package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/model"
)

type importRequest struct {
	Disk  string   `json:"disk"`
	Files []string `json:"files"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	summary, err := s.svc.Import(r.Context(), scopeFrom(r.Context()), importer.Request{
		Files: req.Files,
		Disk:  req.Disk,
		Kind:  kindFrom(r.Context()),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	q, err := s.parseSearchQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}

	results, err := s.svc.Search(r.Context(), scopeFrom(r.Context()), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	q, err := s.parseSearchQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err)
		return
	}

	results, err := s.svc.Geocode(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrors(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}

	res, err := s.svc.BulkDelete(r.Context(), scopeFrom(r.Context()), kindFrom(r.Context()), req.IDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	file, err := s.svc.Export(r.Context(), scopeFrom(r.Context()), kindFrom(r.Context()), params.Get("format"), selections(params))
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (s *Server) handleVehicleStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.svc.VehicleStatuses(r.Context(), scopeFrom(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleRegisterFile(w http.ResponseWriter, r *http.Request) {
	var meta model.FileMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if strings.TrimSpace(meta.Path) == "" {
		writeErrors(w, http.StatusBadRequest, "A file path is required.")
		return
	}
	meta.CompanyUUID = scopeFrom(r.Context()).CompanyUUID

	saved, err := s.svc.RegisterFile(r.Context(), meta)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// parseSearchQuery reads query/q, limit, geo, latitude and longitude. An
// absent limit means the configured default; "0" means unlimited.
func (s *Server) parseSearchQuery(v url.Values) (model.SearchQuery, error) {
	q := model.SearchQuery{
		Text:  strings.TrimSpace(firstNonEmpty(v.Get("query"), v.Get("q"))),
		Limit: s.opts.DefaultLimit,
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, invalidParam("limit", raw)
		}
		q.Limit = n
	}

	if raw := v.Get("geo"); raw != "" {
		geo, err := strconv.ParseBool(raw)
		if err != nil {
			return q, invalidParam("geo", raw)
		}
		q.Geo = geo
	}

	var err error
	if q.Latitude, err = optionalFloat(v, "latitude"); err != nil {
		return q, err
	}
	if q.Longitude, err = optionalFloat(v, "longitude"); err != nil {
		return q, err
	}
	return q, nil
}

func optionalFloat(v url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalidParam(key, raw)
	}
	return &f, nil
}

// selections collects export ids from repeated or comma separated
// selections parameters.
func selections(v url.Values) []string {
	var ids []string
	for _, key := range []string{"selections", "selections[]"} {
		for _, raw := range v[key] {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids
}

func invalidParam(name, raw string) error {
	return model.NewError(model.ErrFormat, fmt.Sprintf("Invalid %s %q.", name, raw), nil)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
