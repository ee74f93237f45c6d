package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice-service/dto"
	"github.com/radieske/provably-fair-dice/internal/dice/beacon"
	"github.com/radieske/provably-fair-dice/internal/dice/fairness"
	"github.com/radieske/provably-fair-dice/internal/dice/game"
	"github.com/radieske/provably-fair-dice/internal/dice/ledger"
	"github.com/radieske/provably-fair-dice/internal/dice/state"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// Engine define as operações do jogo usadas pelos handlers
type Engine interface {
	Vault() state.Pubkey
	Deposit(ctx context.Context, addr state.Pubkey, amount uint64) (uint64, error)
	Balance(ctx context.Context, addr state.Pubkey) (uint64, error)
	Initialize(ctx context.Context, amount uint64) (uint64, error)
	PlaceBet(ctx context.Context, p game.PlaceBetParams) (*game.Placement, error)
	ResolveBet(ctx context.Context, addr state.Pubkey) (*game.Resolution, error)
	RefundBet(ctx context.Context, addr state.Pubkey) (*state.Bet, error)
	Bet(ctx context.Context, addr state.Pubkey) (*state.Bet, error)
	Verify(record []byte, beaconSlot uint64, value beacon.Value) (*state.Bet, fairness.Outcome, error)
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// Server expõe a API HTTP do jogo
type Server struct {
	log    *zap.Logger
	engine Engine
	publ   Publisher
	logs   ledger.LogReader
}

func NewServer(log *zap.Logger, e Engine, p Publisher, logs ledger.LogReader) *Server {
	return &Server{log: log, engine: e, publ: p, logs: logs}
}

// Router retorna as rotas com CORS aberto (frontend de verificação roda em outro host)
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/accounts/{address}", s.getBalance).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{address}/deposit", s.deposit).Methods(http.MethodPost)

	r.HandleFunc("/vault", s.getVault).Methods(http.MethodGet)
	r.HandleFunc("/vault/initialize", s.initialize).Methods(http.MethodPost)

	r.HandleFunc("/bets", s.placeBet).Methods(http.MethodPost)
	r.HandleFunc("/bets/{address}", s.getBet).Methods(http.MethodGet)
	r.HandleFunc("/bets/{address}/resolve", s.resolveBet).Methods(http.MethodPost)
	r.HandleFunc("/bets/{address}/refund", s.refundBet).Methods(http.MethodPost)
	r.HandleFunc("/bets/{address}/events", s.getEvents).Methods(http.MethodGet)

	r.HandleFunc("/verify", s.verify).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

// statusFor mapeia os erros de domínio para HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, state.ErrInvalidBetParameters),
		errors.Is(err, state.ErrInvalidPubkey),
		errors.Is(err, state.ErrInvalidSeed),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, fairness.ErrBeaconTooEarly),
		errors.Is(err, game.ErrWrongBeaconSlot):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, beacon.ErrUnavailable),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrAccountExists),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, game.ErrTimeoutNotReached),
		errors.Is(err, game.ErrBeaconAlreadyKnown),
		errors.Is(err, game.ErrVaultCannotCover):
		return http.StatusConflict
	case errors.Is(err, beacon.ErrStaleTip):
		return http.StatusServiceUnavailable
	case errors.Is(err, state.ErrCorruptRecord):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error(op+" failed", zap.Error(err))
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func addressVar(w http.ResponseWriter, r *http.Request) (state.Pubkey, bool) {
	addr, err := state.ParsePubkey(mux.Vars(r)["address"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return addr, false
	}
	return addr, true
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	bal, err := s.engine.Balance(r.Context(), addr)
	if err != nil {
		s.fail(w, "balance", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: addr.String(), Balance: bal})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	bal, err := s.engine.Deposit(r.Context(), addr, req.Amount)
	if err != nil {
		s.fail(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: addr.String(), Balance: bal})
}

func (s *Server) getVault(w http.ResponseWriter, r *http.Request) {
	vault := s.engine.Vault()
	bal, err := s.engine.Balance(r.Context(), vault)
	if err != nil {
		s.fail(w, "vault", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: vault.String(), Balance: bal})
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request) {
	var req dto.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	bal, err := s.engine.Initialize(r.Context(), req.Amount)
	if err != nil {
		s.fail(w, "initialize", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{Address: s.engine.Vault().String(), Balance: bal})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.engine.PlaceBet(r.Context(), game.PlaceBetParams{
		Player: req.Player,
		Seed:   req.Seed,
		Amount: req.Amount,
		Roll:   req.Roll,
	})
	if err != nil {
		s.fail(w, "place bet", err)
		return
	}

	// a aposta já está gravada; falha de publicação só atrasa a resolução automática
	if err := s.publ.PublishBetPlaced(r.Context(), events.BetPlaced{
		Address:    p.Address.String(),
		Player:     p.Bet.Player.String(),
		Seed:       p.Bet.Seed.String(),
		Slot:       p.Bet.Slot,
		BeaconSlot: p.Bet.BeaconSlot(),
		Amount:     p.Bet.Amount,
		Roll:       p.Bet.Roll,
	}); err != nil {
		s.log.Warn("publish bet_placed failed", zap.String("address", p.Address.String()), zap.Error(err))
	}

	resp := dto.NewBetResponse(p.Address, &p.Bet)
	resp.Rent = p.Rent
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	bet, err := s.engine.Bet(r.Context(), addr)
	if err != nil {
		s.fail(w, "get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBetResponse(addr, bet))
}

func (s *Server) resolveBet(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ResolveBet(r.Context(), addr)
	if err != nil {
		s.fail(w, "resolve bet", err)
		return
	}
	resp := dto.NewOutcomeResponse(&res.Bet, res.Outcome)
	resp.Address = addr.String()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refundBet(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	bet, err := s.engine.RefundBet(r.Context(), addr)
	if err != nil {
		s.fail(w, "refund bet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBetResponse(addr, bet))
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressVar(w, r)
	if !ok {
		return
	}
	if s.logs == nil {
		http.Error(w, "event log not available", http.StatusNotImplemented)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	entries, err := s.logs.Logs(ctx, addr)
	if err != nil {
		s.fail(w, "events", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewEventResponses(entries))
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	record, err := hex.DecodeString(req.Record)
	if err != nil {
		http.Error(w, "record must be hex", http.StatusBadRequest)
		return
	}
	value, err := beacon.ParseValue(req.Beacon)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bet, out, err := s.engine.Verify(record, req.BeaconSlot, value)
	if err != nil {
		s.fail(w, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewOutcomeResponse(bet, out))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
