package throttle

import (
	"net/http"

	"merchant-update-gate/middleware/throttle/application"
)

type statusResponse struct {
	MerchantID        string   `json:"merchant_id"`
	CanUpdate         bool     `json:"can_update"`
	InProgress        bool     `json:"in_progress"`
	Reason            string   `json:"reason"`
	RetryAfterSeconds int      `json:"retry_after_seconds"`
	History           []string `json:"history"`
}

// StatusHandler responde o estado do throttle de um merchant sem registrar
// nada. Usado pelo front para mostrar "aguarde antes de tentar de novo".
func StatusHandler(gate *application.Gate, merchantFn MerchantFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
			return
		}
		id := merchantFn(r)
		if id == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing_merchant_id"})
			return
		}

		ctx := r.Context()
		dec := gate.Evaluate(ctx, id)
		resp := statusResponse{
			MerchantID: string(id),
			CanUpdate:  dec.Allowed,
			InProgress: gate.InProgress(ctx, id),
			Reason:     string(dec.Reason),
			History:    []string{},
		}
		if !dec.Allowed {
			resp.RetryAfterSeconds = retryAfterSeconds(dec.RetryAfter)
		}
		for _, t := range gate.History(ctx, id) {
			resp.History = append(resp.History, application.FormatTimestamp(t))
		}
		writeJSON(w, http.StatusOK, resp)
	})
}
