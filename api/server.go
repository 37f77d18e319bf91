// Package api exposes the settlement engine's transaction submission surface
// over HTTP/JSON. It is a thin translation layer: every request maps to
// exactly one settlement unit and returns either the committed result or the
// unit's abort error.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/liquidityos/service-marketplace-go/domain"
	"github.com/liquidityos/service-marketplace-go/settlement"
)

// Server routes submission requests to the engine.
type Server struct {
	engine *settlement.Engine
	mux    *http.ServeMux
}

// NewServer builds the HTTP handler.
func NewServer(engine *settlement.Engine) *Server {
	s := &Server{engine: engine, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /v1/list-asset", s.handleListAsset)
	s.mux.HandleFunc("POST /v1/buy-listing", s.handleBuyListing)
	s.mux.HandleFunc("POST /v1/create-offering", s.handleCreateOffering)
	s.mux.HandleFunc("POST /v1/buy-service", s.handleBuyService)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// statusFor maps the settlement error taxonomy to HTTP codes. Every abort is
// total, so a non-2xx response means no effect was applied.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrOfferingNotFound),
		errors.Is(err, domain.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrListingExists),
		errors.Is(err, domain.ErrOfferingExists),
		errors.Is(err, domain.ErrAssetExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotAssetOwner),
		errors.Is(err, domain.ErrNotVendor),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrServiceNotActive),
		errors.Is(err, domain.ErrSoldOut),
		errors.Is(err, domain.ErrListingNotActive),
		errors.Is(err, domain.ErrAssetSoulbound),
		errors.Is(err, domain.ErrAssetLocked),
		errors.Is(err, domain.ErrInvalidGroup),
		errors.Is(err, domain.ErrInvalidCustodyProgram),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// ListAssetRequest is the wire form of settlement.ListAssetRequest; account
// ids travel base58.
type ListAssetRequest struct {
	Seller         string `json:"seller"`
	Asset          string `json:"asset"`
	Price          uint64 `json:"price"`
	ExpiresAt      *int64 `json:"expiresAt,omitempty"`
	CustodyProgram string `json:"custodyProgram"`
}

func (s *Server) handleListAsset(w http.ResponseWriter, r *http.Request) {
	var req ListAssetRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := parseIDs(req.Seller, req.Asset, req.CustodyProgram)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	l, err := s.engine.ListAsset(r.Context(), settlement.ListAssetRequest{
		Seller:         ids[0],
		Asset:          ids[1],
		Price:          req.Price,
		ExpiresAt:      req.ExpiresAt,
		CustodyProgram: ids[2],
	})
	if err != nil {
		slog.Debug("list-asset rejected", "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"listing":   l.Address().String(),
		"createdAt": l.CreatedAt,
	})
}

// BuyListingRequest is the wire form of settlement.BuyListingRequest.
type BuyListingRequest struct {
	Buyer          string `json:"buyer"`
	Seller         string `json:"seller"`
	Asset          string `json:"asset"`
	GroupAsset     string `json:"groupAsset"`
	CustodyProgram string `json:"custodyProgram"`
}

func (s *Server) handleBuyListing(w http.ResponseWriter, r *http.Request) {
	var req BuyListingRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := parseIDs(req.Buyer, req.Seller, req.Asset, req.GroupAsset, req.CustodyProgram)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.engine.BuyListing(r.Context(), settlement.BuyListingRequest{
		Buyer:          ids[0],
		Seller:         ids[1],
		Asset:          ids[2],
		GroupAsset:     ids[3],
		CustodyProgram: ids[4],
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "settled"})
}

// CreateOfferingRequest is the wire form of settlement.CreateOfferingRequest.
type CreateOfferingRequest struct {
	Vendor             string `json:"vendor"`
	Name               string `json:"name"`
	MaxQuantity        uint64 `json:"maxQuantity"`
	Price              uint64 `json:"price"`
	ExpiresAt          *int64 `json:"expiresAt,omitempty"`
	Transferable       bool   `json:"transferable"`
	Symbol             string `json:"symbol,omitempty"`
	Description        string `json:"description,omitempty"`
	URI                string `json:"uri,omitempty"`
	ImageURI           string `json:"imageUri,omitempty"`
	RoyaltyBasisPoints uint64 `json:"royaltyBasisPoints,omitempty"`
	TermsOfServiceURI  string `json:"termsOfServiceUri,omitempty"`
	CustodyProgram     string `json:"custodyProgram"`
}

func (s *Server) handleCreateOffering(w http.ResponseWriter, r *http.Request) {
	var req CreateOfferingRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := parseIDs(req.Vendor, req.CustodyProgram)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	o, err := s.engine.CreateServiceOffering(r.Context(), settlement.CreateOfferingRequest{
		Vendor:             ids[0],
		Name:               req.Name,
		MaxQuantity:        req.MaxQuantity,
		Price:              req.Price,
		ExpiresAt:          req.ExpiresAt,
		Transferable:       req.Transferable,
		Symbol:             req.Symbol,
		Description:        req.Description,
		URI:                req.URI,
		ImageURI:           req.ImageURI,
		RoyaltyBasisPoints: req.RoyaltyBasisPoints,
		TermsOfServiceURI:  req.TermsOfServiceURI,
		CustodyProgram:     ids[1],
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"offering":   o.Address().String(),
		"groupAsset": o.AssetID.String(),
	})
}

// BuyServiceRequest is the wire form of settlement.BuyServiceRequest.
type BuyServiceRequest struct {
	Buyer          string `json:"buyer"`
	Vendor         string `json:"vendor"`
	OfferingName   string `json:"offeringName"`
	NewAsset       string `json:"newAsset"`
	CustodyProgram string `json:"custodyProgram"`
}

func (s *Server) handleBuyService(w http.ResponseWriter, r *http.Request) {
	var req BuyServiceRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := parseIDs(req.Buyer, req.Vendor, req.NewAsset, req.CustodyProgram)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.engine.BuyService(r.Context(), settlement.BuyServiceRequest{
		Buyer:          ids[0],
		Vendor:         ids[1],
		OfferingName:   req.OfferingName,
		NewAsset:       ids[2],
		CustodyProgram: ids[3],
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "settled", "asset": req.NewAsset})
}

func parseIDs(in ...string) ([]domain.AccountID, error) {
	out := make([]domain.AccountID, len(in))
	for i, s := range in {
		id, err := domain.AccountIDFromBase58(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
