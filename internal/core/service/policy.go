package service

import (
	"slices"

	"github.com/rl1809/factory-orders/internal/core/domain"
)

type Operation string

const (
	OpCreateOrder       Operation = "orders.create"
	OpViewOrder         Operation = "orders.view"
	OpUpdateOrderStatus Operation = "orders.update_status"
	OpAdjustStock       Operation = "inventory.adjust"
	OpViewLedger        Operation = "inventory.history"
)

// policy maps each operation to the roles allowed to perform it. Owner is
// never listed; it passes every check.
var policy = map[Operation][]domain.Role{
	OpCreateOrder:       {domain.RoleAdmin, domain.RoleManager, domain.RoleSales},
	OpViewOrder:         {domain.RoleAdmin, domain.RoleManager, domain.RoleSales, domain.RoleViewer},
	OpUpdateOrderStatus: {domain.RoleAdmin, domain.RoleManager},
	OpAdjustStock:       {domain.RoleAdmin, domain.RoleManager},
	OpViewLedger:        {domain.RoleAdmin, domain.RoleManager},
}

// Permits checks role against permitted. The owner bypass is evaluated
// before the set is consulted.
func Permits(role domain.Role, permitted []domain.Role) bool {
	if role == domain.RoleOwner {
		return true
	}
	return slices.Contains(permitted, role)
}

// Authorize returns a *domain.ForbiddenError when role may not perform op.
// Operations missing from the policy are owner-only.
func Authorize(role domain.Role, op Operation) error {
	if Permits(role, policy[op]) {
		return nil
	}
	return &domain.ForbiddenError{Role: role, Operation: string(op)}
}
