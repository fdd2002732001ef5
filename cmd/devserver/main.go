// devserver is an in-memory implementation of the remote cart contract for
// local runs and manual testing of the sync engine.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type itemRequestDTO struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type cartServer struct {
	mu    sync.Mutex
	items []domain.ServerLineItem
}

func main() {
	srv := &cartServer{}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requireBearer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", srv.getCart)
			r.Delete("/", srv.clearCart)
			r.Post("/items", srv.addItem)
			r.Patch("/items", srv.updateItem)
			r.Delete("/items", srv.removeItem)
		})
	})

	port := getEnv("DEVSERVER_PORT", "8080")
	log.WithField("port", port).Info("dev cart server starting")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.WithError(err).Fatal("server error")
	}
}

// requireBearer rejects requests without a credential so the engine's 401
// handling can be exercised locally.
func requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= len("Bearer ") {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing credential"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *cartServer) getCart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respondCart(w)
}

func (s *cartServer) addItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeItem(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.ItemKey(req.ProductID, req.VariantID)
	for i := range s.items {
		if s.items[i].Key() == key {
			// Add is an upsert: the quantity in the request is the new total,
			// so replays are idempotent.
			s.items[i].Quantity = req.Quantity
			s.respondCart(w)
			return
		}
	}
	s.items = append(s.items, domain.ServerLineItem{
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		Quantity:      req.Quantity,
		CurrentPrice:  9.99, // fixed catalog price for local runs
		StockQuantity: 100,
		InStock:       true,
		Title:         "dev product " + req.ProductID,
	})
	s.respondCart(w)
}

func (s *cartServer) updateItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeItem(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.ItemKey(req.ProductID, req.VariantID)
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity = req.Quantity
			s.respondCart(w)
			return
		}
	}
	respondJSON(w, http.StatusNotFound, errorResponse{Error: "item not found"})
}

func (s *cartServer) removeItem(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeItem(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.ItemKey(req.ProductID, req.VariantID)
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.respondCart(w)
}

func (s *cartServer) clearCart(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.respondCart(w)
}

func (s *cartServer) respondCart(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": s.items})
}

func decodeItem(w http.ResponseWriter, r *http.Request) (*itemRequestDTO, bool) {
	var req itemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return nil, false
	}
	if req.ProductID == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "productId is required"})
		return nil, false
	}
	return &req, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
