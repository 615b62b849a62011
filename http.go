package ledgerx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

var (
	statusOK = []byte(`{"status":"OK"}`)
)

type balanceJSONResp struct {
	Balance decimal.Decimal `json:"balance"`
}

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
		Log: log,
	}
	mux := chi.NewMux()
	mux.Use(middleware.Recoverer)
	mux.NotFound(HTTPNotFound)
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(statusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(ra chi.Router) {
			ra.Post("/", hndlr.CreateAccount)
			ra.Route("/{acctID:[0-9]+}", func(rr chi.Router) {
				rr.Get("/", hndlr.GetAccount)
				rr.Get("/balance", hndlr.Balance)
			})
		})
		r.Route("/movements/{acctID:[0-9]+}", func(rm chi.Router) {
			rm.Get("/", hndlr.MovementsByPeriod)
			rm.Post("/deposit", hndlr.Deposit)
			rm.Post("/withdraw", hndlr.Withdraw)
			rm.Post("/transfer", hndlr.Transfer)
			rm.Get("/credit", hndlr.movementsByType(Credit))
			rm.Get("/debit", hndlr.movementsByType(Debit))
			rm.Get("/statement", hndlr.Statement)
		})
	})

	return mux
}

type httpHandler struct {
	Svc Service
	Log *zerolog.Logger
}

func (h *httpHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountReq
	if err := h.decode(r, "create_account", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	acct, err := h.Svc.CreateAccount(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, acct)
}

func (h *httpHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.acctID(r, "get_account")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	acct, err := h.Svc.GetAccount(r.Context(), AccountReq{AcctID: acctID})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acct)
}

func (h *httpHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.acctID(r, "balance")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	bal, err := h.Svc.Balance(r.Context(), AccountReq{AcctID: acctID})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceJSONResp{Balance: *bal})
}

func (h *httpHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req ChargeReq
	if err := h.decode(r, "deposit", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	acctID, err := h.acctID(r, "deposit")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.AcctID = acctID
	mov, err := h.Svc.Deposit(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, mov)
}

func (h *httpHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req ChargeReq
	if err := h.decode(r, "withdraw", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	acctID, err := h.acctID(r, "withdraw")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.AcctID = acctID
	mov, err := h.Svc.Withdraw(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, mov)
}

func (h *httpHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if err := h.decode(r, "transfer", &req); err != nil {
		WriteHTTPError(w, err)
		return
	}
	acctID, err := h.acctID(r, "transfer")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	req.AcctID = acctID
	mov, err := h.Svc.Transfer(r.Context(), req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, mov)
}

func (h *httpHandler) MovementsByPeriod(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.acctID(r, "movements_by_period")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	fields := map[string]string{}
	start, end := parsePeriod(r, fields)
	page := parsePage(r, fields)
	if len(fields) > 0 {
		WriteHTTPError(w, ErrBadRequest{Fields: fields})
		return
	}
	movs, err := h.Svc.MovementsByPeriod(r.Context(), PeriodReq{
		AcctID: acctID,
		Start:  start,
		End:    end,
		Page:   page,
	})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nonNil(movs))
}

func (h *httpHandler) movementsByType(typ MovementType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acctID, err := h.acctID(r, "movements_by_type")
		if err != nil {
			WriteHTTPError(w, err)
			return
		}
		fields := map[string]string{}
		page := parsePage(r, fields)
		if len(fields) > 0 {
			WriteHTTPError(w, ErrBadRequest{Fields: fields})
			return
		}
		movs, err := h.Svc.MovementsByType(r.Context(), TypeReq{
			AcctID: acctID,
			Type:   typ,
			Page:   page,
		})
		if err != nil {
			WriteHTTPError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, nonNil(movs))
	}
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	acctID, err := h.acctID(r, "statement")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	fields := map[string]string{}
	start, end := parsePeriod(r, fields)
	if len(fields) > 0 {
		WriteHTTPError(w, ErrBadRequest{Fields: fields})
		return
	}

	// rendered into memory first so a failure can still become a JSON error
	buf := new(bytes.Buffer)
	req := StatementReq{
		AcctID: acctID,
		Start:  start,
		End:    end,
	}
	if err = h.Svc.Statement(r.Context(), buf, req); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="statement-`+acctID.String()+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err = buf.WriteTo(w); err != nil {
		h.Log.Err(err).Str("method", "statement").Msg("error writing statement")
	}
}

func (h *httpHandler) decode(r *http.Request, method string, dst any) error {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", method).Msg("error reading HTTP request")
		return ErrInternalServer
	}
	if err = json.Unmarshal(buf, dst); err != nil {
		h.Log.Err(err).Str("method", method).Msg("error unmarshalling JSON")
		return ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}}
	}
	return nil
}

func (h *httpHandler) acctID(r *http.Request, method string) (snowflake.ID, error) {
	pid := chi.URLParam(r, "acctID")
	acctID, err := snowflake.ParseString(pid)
	if err != nil {
		h.Log.Err(err).Str("method", method).Msg("error parsing account ID")
		return 0, ErrBadRequest{Fields: map[string]string{"acctID": "invalid format"}}
	}
	return acctID, nil
}

func (h *httpHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Err(err).Msg("error encoding JSON response")
	}
}

func nonNil(movs []Movement) []Movement {
	if movs == nil {
		return []Movement{}
	}
	return movs
}

// parsePeriod reads start and end as either whole days (YYYY-MM-DD) or
// RFC3339 instants. A day-only end covers the entire day.
func parsePeriod(r *http.Request, fields map[string]string) (start, end time.Time) {
	q := r.URL.Query()
	var err error
	if start, _, err = parseInstant(q.Get("start")); err != nil {
		fields["start"] = err.Error()
	}
	var dayOnly bool
	if end, dayOnly, err = parseInstant(q.Get("end")); err != nil {
		fields["end"] = err.Error()
	} else if dayOnly {
		end = end.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return start, end
}

var errBadDate = errors.New("expected YYYY-MM-DD or RFC3339")

func parseInstant(s string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, errors.New("missing")
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, errBadDate
	}
	return t.UTC(), false, nil
}

func parsePage(r *http.Request, fields map[string]string) Page {
	q := r.URL.Query()
	var p Page
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["page"] = "must be an integer"
		}
		p.Number = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["pageSize"] = "must be an integer"
		}
		p.Size = n
	}
	return p
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	errnf := &ErrNotFound{}
	errbr := &ErrBadRequest{}
	switch {
	case errors.As(err, errnf):
		w.WriteHeader(http.StatusNotFound)
		ne = json.NewEncoder(w).Encode(errnf)
	case errors.As(err, errbr):
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(errbr)
	case errors.Is(err, ErrInsufficientBalance):
		w.WriteHeader(http.StatusBadRequest)
		ne = json.NewEncoder(w).Encode(map[string]string{"message": ErrInsufficientBalance.Error()})
	case errors.Is(err, ErrTransientConflict):
		w.WriteHeader(http.StatusConflict)
		ne = json.NewEncoder(w).Encode(map[string]string{"message": ErrTransientConflict.Error()})
	case errors.Is(err, ErrServiceUnavailable):
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusServiceUnavailable)
		ne = json.NewEncoder(w).Encode(map[string]string{"message": ErrServiceUnavailable.Error()})
	default:
		log.Error().Err(err).Msg("unhandled service error")
		w.WriteHeader(http.StatusInternalServerError)
		resp := map[string]string{
			"message": "server error",
		}
		ne = json.NewEncoder(w).Encode(resp)
	}
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}
