package workflow

import "hr-workflow/internal/model"

type capKey struct {
	role     model.Role
	category model.Category
	from     model.Status
}

type rule struct {
	to       model.Status
	override bool // admin decided a TwoStage request before any chef review
}

// capabilities is the single source of truth for who may move a request where.
var capabilities = map[capKey]map[model.Outcome]rule{
	{model.RoleChef, model.CategoryTwoStage, model.StatusPending}: {
		model.OutcomeApprove: {to: model.StatusChefApproved},
		model.OutcomeReject:  {to: model.StatusChefRejected},
	},
	{model.RoleAdmin, model.CategoryTwoStage, model.StatusChefApproved}: {
		model.OutcomeApprove: {to: model.StatusApproved},
		model.OutcomeReject:  {to: model.StatusRejected},
	},
	{model.RoleAdmin, model.CategoryTwoStage, model.StatusChefRejected}: {
		model.OutcomeApprove: {to: model.StatusApproved},
		model.OutcomeReject:  {to: model.StatusRejected},
	},
	{model.RoleAdmin, model.CategoryTwoStage, model.StatusPending}: {
		model.OutcomeApprove: {to: model.StatusApproved, override: true},
		model.OutcomeReject:  {to: model.StatusRejected, override: true},
	},
	{model.RoleAdmin, model.CategorySingleStage, model.StatusPending}: {
		model.OutcomeApprove: {to: model.StatusApproved},
		model.OutcomeReject:  {to: model.StatusRejected},
	},
}

// hasAuthority reports whether role can decide anything for category.
func hasAuthority(role model.Role, category model.Category) bool {
	for k := range capabilities {
		if k.role == role && k.category == category {
			return true
		}
	}
	return false
}

func lookup(role model.Role, category model.Category, from model.Status, outcome model.Outcome, allowOverride bool) (rule, bool) {
	r, ok := capabilities[capKey{role, category, from}][outcome]
	if !ok || (r.override && !allowOverride) {
		return rule{}, false
	}
	return r, true
}

// Reachable returns every status a request of category can hold.
func Reachable(category model.Category) map[model.Status]bool {
	seen := map[model.Status]bool{model.StatusPending: true}
	queue := []model.Status{model.StatusPending}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]
		for k, outcomes := range capabilities {
			if k.category != category || k.from != from {
				continue
			}
			for _, r := range outcomes {
				if !seen[r.to] {
					seen[r.to] = true
					queue = append(queue, r.to)
				}
			}
		}
	}
	return seen
}
