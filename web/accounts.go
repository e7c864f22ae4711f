package web

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/finmodel/finmodel/model"
)

// writeJSONResponse writes a JSON response to the http.ResponseWriter.
// If encoding fails, it writes an error response.
func writeJSONResponse(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// AccountInfo describes one account of the model.
type AccountInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Parent    string `json:"parent,omitempty"`
	Sheet     string `json:"sheet"`
	Polarity  string `json:"polarity"`
	Parameter string `json:"parameter"`
	Impact    string `json:"impact"`
	Generated bool   `json:"generated,omitempty"`
	Source    string `json:"source,omitempty"`
}

// AccountsResponse is the JSON response structure for the accounts endpoint.
type AccountsResponse struct {
	Accounts []AccountInfo `json:"accounts"`
}

// PeriodInfo describes one period of the model.
type PeriodInfo struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Sequence   int    `json:"sequence"`
	Historical bool   `json:"historical"`
	Forecast   bool   `json:"forecast"`
}

// PeriodsResponse is the JSON response structure for the periods endpoint.
type PeriodsResponse struct {
	Periods []PeriodInfo `json:"periods"`
}

func newAccountInfo(a model.Account, params map[string]model.Parameter) AccountInfo {
	info := AccountInfo{
		ID:        a.ID,
		Name:      a.Name,
		Parent:    a.ParentID,
		Sheet:     a.Sheet.String(),
		Polarity:  a.Polarity.String(),
		Parameter: model.KindOf(model.EffectiveParameter(a, params)).String(),
		Impact:    model.ImpactName(a.Impact),
		Generated: a.Generated,
	}
	if a.Source != nil {
		info.Source = a.Source.AccountID
	}
	return info
}

// handleGetAccounts handles GET requests to /api/accounts.
// Returns every account in display order, including generated cash-flow
// accounts once the model has been calculated.
func (s *Server) handleGetAccounts(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source := s.model.Input.Accounts
	if s.output != nil {
		source = s.output.Accounts
	}

	accounts := make([]AccountInfo, 0, len(source))
	sorted := append([]model.Account(nil), source...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order.Less(sorted[j].Order)
	})
	for _, a := range sorted {
		accounts = append(accounts, newAccountInfo(a, s.model.Input.Parameters))
	}

	writeJSONResponse(w, &AccountsResponse{Accounts: accounts})
}

// handleGetPeriods handles GET requests to /api/periods.
func (s *Server) handleGetPeriods(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := model.SortPeriods(s.model.Input.Periods)
	periods := make([]PeriodInfo, 0, len(sorted))
	for _, p := range sorted {
		periods = append(periods, PeriodInfo{
			ID:         p.ID,
			Label:      p.Label(),
			Sequence:   p.Sequence,
			Historical: p.Historical,
			Forecast:   p.Forecast,
		})
	}

	writeJSONResponse(w, &PeriodsResponse{Periods: periods})
}
