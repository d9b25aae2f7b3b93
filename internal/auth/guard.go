package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/install-tickets/internal/domain"
	apperrors "github.com/spec-kit/install-tickets/pkg/util"
)

// RequireRole fails with FORBIDDEN unless p holds one of roles.
func RequireRole(p domain.Principal, roles ...domain.Role) error {
	for _, role := range roles {
		if p.Role == role {
			return nil
		}
	}
	return apperrors.NewForbidden("insufficient role")
}

// RequireSelfOrAdmin allows admins and the user acting on their own record.
func RequireSelfOrAdmin(p domain.Principal, userID int64) error {
	if p.Is(domain.RoleAdmin) || p.UserID == userID {
		return nil
	}
	return apperrors.NewForbidden("not allowed to act on another user")
}

// RequireSelf allows only the user acting on their own record.
func RequireSelf(p domain.Principal, userID int64) error {
	if p.UserID == userID {
		return nil
	}
	return apperrors.NewForbidden("not allowed to act on another user")
}

// RequireAssigneeOrAdmin allows admins and the technician the ticket is assigned to.
func RequireAssigneeOrAdmin(p domain.Principal, ticket *domain.Ticket) error {
	if p.Is(domain.RoleAdmin) || (p.Is(domain.RoleTech) && ticket.IsAssignedTo(p.UserID)) {
		return nil
	}
	return apperrors.NewForbidden("ticket is not assigned to you")
}

// RequireTicketAccess allows admins, the requesting seller and the assigned tech.
func RequireTicketAccess(p domain.Principal, ticket *domain.Ticket) error {
	if p.Is(domain.RoleSeller) && ticket.RequestedBy == p.UserID {
		return nil
	}
	if RequireAssigneeOrAdmin(p, ticket) == nil {
		return nil
	}
	return NoTicketAccess()
}

// NoTicketAccess is returned both for foreign tickets and for ids that do not
// exist.
func NoTicketAccess() error {
	return apperrors.NewForbidden("no access to this ticket")
}

// RequireRoles is the route-level form of RequireRole.
func RequireRoles(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		if err := RequireRole(principal, roles...); err != nil {
			return err
		}
		return c.Next()
	}
}
