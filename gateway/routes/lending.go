package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"lendingpool/gateway/middleware"
	"lendingpool/native/bank"
	nativecommon "lendingpool/native/common"
	"lendingpool/native/lending"
	"lendingpool/native/oracle"
	"lendingpool/services/lending/engine"
)

const lendingRequestLimit = 1 << 20 // 1 MiB

// Lending is the subset of the engine the HTTP surface drives.
type Lending interface {
	Supply(ctx context.Context, caller string, req engine.SupplyRequest) (engine.Receipt, error)
	Withdraw(ctx context.Context, caller string, req engine.WithdrawRequest) (engine.Receipt, error)
	Borrow(ctx context.Context, caller string, req engine.BorrowRequest) (engine.Receipt, error)
	Repay(ctx context.Context, caller string, req engine.RepayRequest) (engine.Receipt, error)
	SetCollateral(ctx context.Context, caller string, req engine.CollateralRequest) error
	SetEMode(ctx context.Context, caller string, req engine.EModeRequest) error
	ApproveDelegation(ctx context.Context, caller string, req engine.DelegationRequest) error
	Liquidate(ctx context.Context, caller string, req engine.LiquidationRequest) (engine.Liquidation, error)
	Reserves(ctx context.Context) ([]engine.Reserve, error)
	Reserve(ctx context.Context, asset string) (engine.Reserve, error)
	Account(ctx context.Context, user string) (engine.Account, error)
}

// lendingRoutes wires HTTP handlers to the lending engine.
type lendingRoutes struct {
	engine  Lending
	timeout time.Duration
	logger  *slog.Logger
}

func (lr *lendingRoutes) mountReads(r chi.Router) {
	r.Get("/reserves", lr.listReserves)
	r.Get("/reserves/{asset}", lr.getReserve)
	r.Get("/accounts/{address}", lr.getAccount)
}

func (lr *lendingRoutes) mountWrites(r chi.Router) {
	r.Post("/supply", handleWrite(lr, lr.engine.Supply))
	r.Post("/withdraw", handleWrite(lr, lr.engine.Withdraw))
	r.Post("/borrow", handleWrite(lr, lr.engine.Borrow))
	r.Post("/repay", handleWrite(lr, lr.engine.Repay))
	r.Post("/liquidations", handleWrite(lr, lr.engine.Liquidate))
	r.Post("/collateral", handleUpdate(lr, lr.engine.SetCollateral))
	r.Post("/emode", handleUpdate(lr, lr.engine.SetEMode))
	r.Post("/delegations", handleUpdate(lr, lr.engine.ApproveDelegation))
}

func (lr *lendingRoutes) context(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := lr.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, timeout)
}

func (lr *lendingRoutes) listReserves(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()

	reserves, err := lr.engine.Reserves(ctx)
	if err != nil {
		lr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reserves": reserves})
}

func (lr *lendingRoutes) getReserve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()

	reserve, err := lr.engine.Reserve(ctx, chi.URLParam(r, "asset"))
	if err != nil {
		lr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reserve)
}

func (lr *lendingRoutes) getAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := lr.context(r.Context())
	defer cancel()

	account, err := lr.engine.Account(ctx, chi.URLParam(r, "address"))
	if err != nil {
		lr.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func handleWrite[Req, Resp any](lr *lendingRoutes, call func(context.Context, string, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decodeRequest(r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		ctx, cancel := lr.context(r.Context())
		defer cancel()

		resp, err := call(ctx, middleware.Subject(r.Context()), req)
		if err != nil {
			lr.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleUpdate[Req any](lr *lendingRoutes, call func(context.Context, string, Req) error) http.HandlerFunc {
	return handleWrite(lr, func(ctx context.Context, caller string, req Req) (map[string]bool, error) {
		if err := call(ctx, caller, req); err != nil {
			return nil, err
		}
		return map[string]bool{"ok": true}, nil
	})
}

func decodeRequest(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("missing request body")
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, lendingRequestLimit+1))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) > lendingRequestLimit {
		return errors.New("request body too large")
	}
	if len(data) == 0 {
		return errors.New("request body is empty")
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (lr *lendingRoutes) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		lr.logger.Error("lending request failed", "method", r.Method, "route", r.URL.Path, "status", status, "error", err)
	}
	var poolErr *lending.Error
	if errors.As(err, &poolErr) {
		writeJSON(w, status, map[string]interface{}{
			"error": poolErr.Message,
			"code":  poolErr.Code,
			"kind":  poolErr.Kind.String(),
		})
		return
	}
	if status == http.StatusInternalServerError {
		err = errors.New(http.StatusText(status))
	}
	writeJSONError(w, status, err)
}

func statusFor(err error) int {
	var poolErr *lending.Error
	switch {
	case errors.As(err, &poolErr):
		return statusForKind(poolErr.Kind)
	case errors.Is(err, engine.ErrInvalidAddress), errors.Is(err, engine.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, nativecommon.ErrModulePaused), errors.Is(err, oracle.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func statusForKind(kind lending.ErrorKind) int {
	switch kind {
	case lending.KindInput:
		return http.StatusBadRequest
	case lending.KindAuthorization:
		return http.StatusForbidden
	case lending.KindState, lending.KindConsistency:
		return http.StatusConflict
	case lending.KindCapacity, lending.KindSolvency:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Errorf("marshal response: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSONError(w, http.StatusBadRequest, err)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	payload, marshalErr := json.Marshal(map[string]string{"error": message})
	if marshalErr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	_, _ = w.Write(payload)
}
