package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	ferrors "github.com/finmodel/finmodel/errors"
	"github.com/finmodel/finmodel/model"
	"github.com/finmodel/finmodel/pipeline"
)

// ResultsResponse is the JSON response structure for the results endpoint.
type ResultsResponse struct {
	RunID            string   `json:"runId,omitempty"`
	Mode             string   `json:"mode,omitempty"`
	SortedAccountIDs []string `json:"sortedAccountIds"`
	Periods          []string `json:"periods"`
	// Values maps account id to period id to value.
	Values     map[string]map[string]decimal.Decimal `json:"values"`
	Results    map[string]decimal.Decimal            `json:"results"`
	Errors     []ferrors.ErrorJSON                   `json:"errors"`
	CfAccounts []AccountInfo                         `json:"cfAccounts"`
	// FailedAccounts lists the accounts with calculation errors.
	FailedAccounts []string `json:"failedAccounts"`
}

// ValueUpdate sets one supplied value.
type ValueUpdate struct {
	AccountID string          `json:"accountId"`
	PeriodID  string          `json:"periodId"`
	Value     decimal.Decimal `json:"value"`
}

// ValuesRequest is the body of PUT /api/values.
type ValuesRequest struct {
	Values []ValueUpdate `json:"values"`
}

// RecalculatedEvent is the payload of the SSE "recalculated" event.
type RecalculatedEvent struct {
	RunID  string `json:"runId,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Errors int    `json:"errors"`
	Failed bool   `json:"failed,omitempty"`
}

// NewResultsResponse builds the results document of a successful run.
// params resolves the parameter kind reported for cash-flow accounts.
func NewResultsResponse(out *pipeline.Output, params map[string]model.Parameter) *ResultsResponse {
	resp := &ResultsResponse{
		RunID:            out.RunID.String(),
		Mode:             out.Mode.String(),
		SortedAccountIDs: out.SortedAccountIDs,
		Periods:          make([]string, 0, len(out.Periods)),
		Values:           make(map[string]map[string]decimal.Decimal),
		Results:          out.CalculationResults,
		CfAccounts:       make([]AccountInfo, 0, len(out.CfGeneratedAccounts)),
		FailedAccounts:   failedAccounts(out),
	}
	for _, p := range out.Periods {
		resp.Periods = append(resp.Periods, p.ID)
	}
	for _, v := range out.FinancialValues.Sorted() {
		byPeriod, ok := resp.Values[v.AccountID]
		if !ok {
			byPeriod = make(map[string]decimal.Decimal)
			resp.Values[v.AccountID] = byPeriod
		}
		byPeriod[v.PeriodID] = v.Value
	}

	errs := make([]error, 0, len(out.CalculationErrors))
	for _, e := range out.CalculationErrors {
		errs = append(errs, e)
	}
	resp.Errors = ferrors.NewJSONFormatter().FormatAllToSlice(errs)

	for _, a := range out.CfGeneratedAccounts {
		resp.CfAccounts = append(resp.CfAccounts, newAccountInfo(a, params))
	}
	return resp
}

// FailedResultsResponse builds the results document of a run that failed
// structurally.
func FailedResultsResponse(err error) *ResultsResponse {
	return &ResultsResponse{
		SortedAccountIDs: []string{},
		Periods:          []string{},
		Values:           map[string]map[string]decimal.Decimal{},
		Results:          map[string]decimal.Decimal{},
		Errors:           ferrors.NewJSONFormatter().FormatAllToSlice([]error{err}),
		CfAccounts:       []AccountInfo{},
		FailedAccounts:   []string{},
	}
}

// resultsLocked builds the results response and its status code. A
// structural failure of the last run yields 422.
// Caller must hold at least the read lock.
func (s *Server) resultsLocked() (int, *ResultsResponse) {
	if s.runErr != nil {
		return http.StatusUnprocessableEntity, FailedResultsResponse(s.runErr)
	}
	return http.StatusOK, NewResultsResponse(s.output, s.model.Input.Parameters)
}

// handleGetResults handles GET requests to /api/results.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, resp := s.resultsLocked()
	writeJSON(w, status, resp)
}

// handlePutValues handles PUT requests to /api/values. The supplied values
// are replaced and the model is recalculated values-only.
func (s *Server) handlePutValues(w http.ResponseWriter, r *http.Request) {
	var req ValuesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	accounts := make(map[string]bool, len(s.model.Input.Accounts))
	for _, a := range s.model.Input.Accounts {
		accounts[a.ID] = true
	}
	periods := make(map[string]bool, len(s.model.Input.Periods))
	for _, p := range s.model.Input.Periods {
		periods[p.ID] = true
	}

	for _, u := range req.Values {
		switch {
		case !accounts[u.AccountID]:
			s.mu.Unlock()
			http.Error(w, fmt.Sprintf("unknown account %q", u.AccountID), http.StatusBadRequest)
			return
		case !periods[u.PeriodID]:
			s.mu.Unlock()
			http.Error(w, fmt.Sprintf("unknown period %q", u.PeriodID), http.StatusBadRequest)
			return
		}
	}

	values := s.model.Input.Values.Clone()
	for _, u := range req.Values {
		values.Set(model.Supplied(u.AccountID, u.PeriodID, u.Value))
	}
	s.model.Input.Values = values

	s.recalculateLocked(r.Context(), pipeline.ModeValuesOnly)
	status, resp := s.resultsLocked()
	s.mu.Unlock()

	s.broadcastRecalculated()
	writeJSON(w, status, resp)
}

// handleRecalculate handles POST requests to /api/recalculate?mode=.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	mode, err := pipeline.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.recalculateLocked(r.Context(), mode)
	status, resp := s.resultsLocked()
	s.mu.Unlock()

	s.broadcastRecalculated()
	writeJSON(w, status, resp)
}

// recalculatedEvent summarizes the last run for SSE clients.
func (s *Server) recalculatedEvent() RecalculatedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.runErr != nil || s.output == nil {
		return RecalculatedEvent{Failed: true}
	}
	return RecalculatedEvent{
		RunID:  s.output.RunID.String(),
		Mode:   s.output.Mode.String(),
		Errors: len(s.output.CalculationErrors),
	}
}

// failedAccounts lists the ids of accounts with calculation errors, sorted.
func failedAccounts(out *pipeline.Output) []string {
	seen := make(map[string]bool)
	for _, e := range out.CalculationErrors {
		seen[e.AccountID] = true
	}
	ids := maps.Keys(seen)
	slices.Sort(ids)
	return ids
}
