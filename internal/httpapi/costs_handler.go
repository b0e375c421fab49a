package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ai_orchestrator/internal/cost"
	"ai_orchestrator/internal/utils"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// handleDailyCost handles GET /v1/costs/daily?date=YYYY-MM-DD (today by default)
func (d *Dependencies) handleDailyCost(w http.ResponseWriter, r *http.Request) {
	date, err := parseTimeParam(r, "date", dateLayout, time.Now().UTC())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := d.Costs.DailyCost(r.Context(), date)
	if err != nil {
		d.respondWithCostError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"date":        date.Format(dateLayout),
		"total_cents": total,
	})
}

// handleMonthlyCost handles GET /v1/costs/monthly?month=YYYY-MM (current month by default)
func (d *Dependencies) handleMonthlyCost(w http.ResponseWriter, r *http.Request) {
	month, err := parseTimeParam(r, "month", monthLayout, time.Now().UTC())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, err := d.Costs.MonthlyCost(r.Context(), month)
	if err != nil {
		d.respondWithCostError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"month":       month.Format(monthLayout),
		"total_cents": total,
	})
}

// handleCostByModel handles GET /v1/costs/models?from=&to=
func (d *Dependencies) handleCostByModel(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := d.Costs.CostByModel(r.Context(), p)
	if err != nil {
		d.respondWithCostError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, periodResponse(p, "models", totals))
}

// handleCostPerUser handles GET /v1/costs/users?from=&to=
func (d *Dependencies) handleCostPerUser(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := d.Costs.CostPerUser(r.Context(), p)
	if err != nil {
		d.respondWithCostError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, periodResponse(p, "users", totals))
}

// handleCostByUser handles GET /v1/costs/users/{id}?from=&to=
func (d *Dependencies) handleCostByUser(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := mux.Vars(r)["id"]
	total, err := d.Costs.CostByUser(r.Context(), userID, p)
	if err != nil {
		d.respondWithCostError(w, err)
		return
	}
	resp := periodResponse(p, "", nil)
	resp["user_id"] = userID
	resp["total_cents"] = total
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) respondWithCostError(w http.ResponseWriter, err error) {
	d.logger.Error("Cost query failed", "error", err)
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute cost")
}

// parsePeriod reads from/to as dates; to is inclusive. Defaults to the current month.
func parsePeriod(r *http.Request) (cost.Period, error) {
	now := time.Now().UTC()
	p := cost.MonthPeriod(now)

	from, err := parseTimeParam(r, "from", dateLayout, p.From)
	if err != nil {
		return cost.Period{}, err
	}
	p.From = from

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return cost.Period{}, fmt.Errorf("invalid to: expected %s", dateLayout)
		}
		p.To = to.AddDate(0, 0, 1)
	}

	if err := p.Validate(); err != nil {
		return cost.Period{}, err
	}
	return p, nil
}

func parseTimeParam(r *http.Request, name, layout string, def time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: expected %s", name, layout)
	}
	return t, nil
}

func periodResponse(p cost.Period, key string, totals map[string]int64) map[string]any {
	resp := map[string]any{
		"from": p.From.Format(dateLayout),
		"to":   p.To.AddDate(0, 0, -1).Format(dateLayout),
	}
	if key != "" {
		if totals == nil {
			totals = map[string]int64{}
		}
		var sum int64
		for _, v := range totals {
			sum += v
		}
		resp[key] = totals
		resp["total_cents"] = sum
	}
	return resp
}
