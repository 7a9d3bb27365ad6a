package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ferreteria/storefront/app"
	"github.com/ferreteria/storefront/internal/authz"
	"github.com/ferreteria/storefront/utils"
)

// GuardRequest carries what the browser holds in local storage. User may be
// the stored object or the raw stored string.
type GuardRequest struct {
	User json.RawMessage `json:"user"`
	Path string          `json:"path" validate:"required,startswith=/"`
	Mode string          `json:"mode,omitempty" validate:"omitempty,oneof=redirect fallback"`
}

// cachedUserBytes unwraps a user sent as a JSON string.
func (r GuardRequest) cachedUserBytes() []byte {
	var s string
	if err := json.Unmarshal(r.User, &s); err == nil {
		return []byte(s)
	}
	if string(r.User) == "null" {
		return nil
	}
	return r.User
}

// GuardCheck handles POST /api/v1/guard. The answer is advisory: the route
// gate still decides on every navigation.
func GuardCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuardRequest
		if err := utils.DecodeJSON(r, &req); err != nil {
			HandleDecodeError(w, err, deps.Logger)
			return
		}
		if err := utils.ValidateStruct(&req); err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		guard := deps.Guard
		if req.Mode != "" {
			guard = authz.NewGuard(authz.ParseGuardMode(req.Mode))
		}

		decision := guard.Evaluate(req.cachedUserBytes(), req.Path)
		deps.Metrics.IncGuardDecision(decision.Allowed)
		_ = utils.WriteOK(w, decision)
	}
}
