package webhooks

import "strings"

const (
	TypeItem   = "ITEM"
	TypeIncome = "INCOME"
	TypeLink   = "LINK"
)

// Route names the follow-up action attached to a recognized event.
type Route struct {
	Name string
	// FollowUp requests a background job for the event.
	FollowUp bool
}

var defaultRoutes = map[string]Route{
	routeKey(TypeItem, "ERROR"):                              {Name: "item.error", FollowUp: true},
	routeKey(TypeItem, "PENDING_EXPIRATION"):                 {Name: "item.pending_expiration", FollowUp: true},
	routeKey(TypeItem, "PENDING_DISCONNECT"):                 {Name: "item.pending_disconnect", FollowUp: true},
	routeKey(TypeItem, "USER_PERMISSION_REVOKED"):            {Name: "item.permission_revoked", FollowUp: true},
	routeKey(TypeItem, "LOGIN_REPAIRED"):                     {Name: "item.login_repaired", FollowUp: true},
	routeKey(TypeItem, "WEBHOOK_UPDATE_ACKNOWLEDGED"):        {Name: "item.webhook_update_acknowledged"},
	routeKey(TypeIncome, "INCOME_VERIFICATION"):              {Name: "income.verification", FollowUp: true},
	routeKey(TypeIncome, "INCOME_VERIFICATION_RISK_SIGNALS"): {Name: "income.risk_signals", FollowUp: true},
	routeKey(TypeLink, "EVENTS"):                             {Name: "link.events"},
	routeKey(TypeLink, "SESSION_FINISHED"):                   {Name: "link.session_finished"},
	routeKey(TypeLink, "ITEM_ADD_RESULT"):                    {Name: "link.item_add_result", FollowUp: true},
}

func DefaultRoutes() map[string]Route {
	out := make(map[string]Route, len(defaultRoutes))
	for key, route := range defaultRoutes {
		out[key] = route
	}
	return out
}

func routeKey(webhookType string, webhookCode string) string {
	return strings.ToUpper(strings.TrimSpace(webhookType)) + ":" + strings.ToUpper(strings.TrimSpace(webhookCode))
}

// FollowUpJobID is the job id used for follow-up work of a webhook type.
func FollowUpJobID(webhookType string) string {
	kind := strings.ToLower(strings.TrimSpace(webhookType))
	if kind == "" {
		kind = "unknown"
	}
	return "payroll.webhook." + kind
}
