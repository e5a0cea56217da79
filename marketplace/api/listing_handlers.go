package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"roomlink-api/marketplace/application"
	"roomlink-api/marketplace/domain"
	"roomlink-api/middleware/bearer"

	"github.com/go-chi/chi/v5"
)

type createListingRequest struct {
	Area          string   `json:"area"`
	Rent          float64  `json:"rent"`
	Deposit       float64  `json:"deposit"`
	RoomType      string   `json:"roomType"`
	Description   string   `json:"description"`
	ImageURL      string   `json:"imageUrl"`
	ContactNumber string   `json:"contactNumber"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

type listingResponse struct {
	ID            int64     `json:"id"`
	Area          string    `json:"area"`
	Rent          float64   `json:"rent"`
	Deposit       float64   `json:"deposit"`
	RoomType      string    `json:"roomType"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"imageUrl"`
	ContactNumber string    `json:"contactNumber"`
	Status        string    `json:"status"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	ReporterID    int64     `json:"reporterId"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toListingResponse(l *domain.Listing) listingResponse {
	return listingResponse{
		ID:            l.ID,
		Area:          l.Area,
		Rent:          l.Rent,
		Deposit:       l.Deposit,
		RoomType:      string(l.RoomType),
		Description:   l.Description,
		ImageURL:      l.ImageURL,
		ContactNumber: l.ContactNumber,
		Status:        string(l.Status),
		Latitude:      l.Latitude,
		Longitude:     l.Longitude,
		ReporterID:    l.ReporterID,
		CreatedAt:     l.CreatedAt,
	}
}

func toListingResponses(ls []*domain.Listing) []listingResponse {
	out := make([]listingResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toListingResponse(l))
	}
	return out
}

func (h *handler) searchListings(w http.ResponseWriter, r *http.Request) {
	f, err := parseListingFilter(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ls, err := h.Listings.Search(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(ls))
}

func parseListingFilter(r *http.Request) (domain.ListingFilter, error) {
	q := r.URL.Query()
	f := domain.ListingFilter{Area: strings.TrimSpace(q.Get("area"))}

	var err error
	if f.MinRent, err = optionalFloat(q.Get("minRent"), "minRent"); err != nil {
		return f, err
	}
	if f.MaxRent, err = optionalFloat(q.Get("maxRent"), "maxRent"); err != nil {
		return f, err
	}
	if v := q.Get("roomType"); v != "" {
		if f.RoomType, err = domain.ParseRoomType(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, domain.Invalid("page", "must be an integer")
		}
	}
	if v := q.Get("size"); v != "" {
		if f.Size, err = strconv.Atoi(v); err != nil {
			return f, domain.Invalid("size", "must be an integer")
		}
		// size=0 explícito vale 1, não o padrão.
		if f.Size == 0 {
			f.Size = 1
		}
	}
	return f.Normalize(), nil
}

func optionalFloat(v, field string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, domain.Invalid(field, "must be a number")
	}
	return &n, nil
}

func (h *handler) getListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, r, h.Logger, domain.ErrNotFound)
		return
	}
	l, err := h.Listings.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponse(l))
}

func (h *handler) createListing(w http.ResponseWriter, r *http.Request) {
	subject, _ := bearer.Subject(r.Context())

	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	l, err := h.Listings.Create(r.Context(), subject, application.CreateListingInput{
		Area:          req.Area,
		Rent:          req.Rent,
		Deposit:       req.Deposit,
		RoomType:      req.RoomType,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		ContactNumber: req.ContactNumber,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
	})
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.Header().Set("Location", "/api/listings/"+strconv.FormatInt(l.ID, 10))
	writeJSON(w, http.StatusCreated, toListingResponse(l))
}

func (h *handler) myListings(w http.ResponseWriter, r *http.Request) {
	subject, _ := bearer.Subject(r.Context())
	ls, err := h.Listings.Mine(r.Context(), subject)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toListingResponses(ls))
}
