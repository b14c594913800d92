// Package stubapi is an in-process stand-in for the ORB Lotto backend,
// implementing the four endpoints the client consumes against an in-memory
// ledger. It exists for tests and the demo binary; the real backend is an
// external service and stays out of scope.
package stubapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/orblotto/go-wallet-bridge/hostwallet"
	"github.com/orblotto/go-wallet-bridge/lotto"
)

// RecipientAddress is the payment recipient the stub hands out.
const RecipientAddress = "0x000000000000000000000000000000000000dEaD"

type paymentRecord struct {
	ID          string
	TicketCount int
	Amount      float64
	Currency    string
	Verified    bool
}

// Server is the stub backend.
type Server struct {
	router chi.Router

	lock     sync.Mutex
	nonces   map[string]bool // nonce -> consumed
	payments map[string]*paymentRecord
}

func New() *Server {
	s := &Server{
		nonces:   make(map[string]bool),
		payments: make(map[string]*paymentRecord),
	}
	r := chi.NewRouter()
	r.Get("/api/nonce", s.handleNonce)
	r.Post("/api/complete-siwe", s.handleCompleteSIWE)
	r.Post("/api/initiate-payment", s.handleInitiatePayment)
	r.Post("/api/verify-payment", s.handleVerifyPayment)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	nonce := uuid.New().String()
	s.lock.Lock()
	s.nonces[nonce] = false
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (s *Server) handleCompleteSIWE(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Payload *hostwallet.WalletAuthPayload `json:"payload"`
		Nonce   string                        `json:"nonce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Payload == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}

	s.lock.Lock()
	consumed, known := s.nonces[in.Nonce]
	if known && !consumed {
		s.nonces[in.Nonce] = true
	}
	s.lock.Unlock()

	// A nonce is single use: unknown or already-consumed nonces fail
	// verification, as does a payload the host itself marked failed.
	valid := known && !consumed &&
		in.Payload.Status == hostwallet.StatusSuccess &&
		in.Payload.Address != "" &&
		in.Payload.Signature != ""

	if !valid {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "isValid": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "isValid": true})
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TicketCount int     `json:"ticketCount"`
		Amount      float64 `json:"amount"`
		Currency    string  `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	if in.TicketCount < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ticketCount must be at least 1"})
		return
	}
	if !lotto.ValidUnitAmount(int(in.Amount)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown ticket tier"})
		return
	}
	if !lotto.ValidCurrency(lotto.Currency(in.Currency)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported currency"})
		return
	}

	record := &paymentRecord{
		ID:          uuid.New().String(),
		TicketCount: in.TicketCount,
		Amount:      in.Amount * float64(in.TicketCount),
		Currency:    in.Currency,
	}
	s.lock.Lock()
	s.payments[record.ID] = record
	s.lock.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"paymentId":        record.ID,
		"recipientAddress": RecipientAddress,
		"amount":           record.Amount,
	})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PaymentID     string `json:"paymentId"`
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	if in.TransactionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transactionId is required"})
		return
	}

	s.lock.Lock()
	record, ok := s.payments[in.PaymentID]
	if ok {
		record.Verified = true
	}
	s.lock.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown payment"})
		return
	}

	tickets := make([]map[string]string, record.TicketCount)
	for i := range tickets {
		tickets[i] = map[string]string{"number": lotto.NewTicketNumber()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

// Verified reports whether a payment id has been verified, for tests.
func (s *Server) Verified(paymentID string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	record, ok := s.payments[paymentID]
	return ok && record.Verified
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
