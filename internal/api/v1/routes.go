package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterHandlers binds the v1 endpoints onto the given router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Get("/plans", s.GetPlans)
	router.Get("/plans/:id", s.GetPlan)
	router.Get("/plans/:id/quote", s.GetUpgradeQuote)

	router.Get("/subscription", s.GetSubscription)
	router.Get("/subscription/upgrades", s.GetUpgrades)
	router.Post("/subscription/change", s.PostPlanChange)

	router.Get("/credits", s.GetCredits)
	router.Get("/credits/transactions", s.GetCreditTransactions)
	router.Post("/credits/transfer", s.PostCreditTransfer)
	router.Post("/credits/use", s.PostCreditUsage)

	router.Get("/team/members", s.GetTeamMembers)
	router.Get("/team/seats", s.GetTeamSeats)
	router.Delete("/team/members/:id", s.DeleteTeamMember)
	router.Put("/team/members/:id/role", s.PutTeamMemberRole)

	router.Post("/invitations", s.PostInvitation)
	router.Get("/invitations", s.GetInvitations)
	router.Get("/invitations/token/:token", s.GetInvitationByToken)
	router.Post("/invitations/accept", s.PostInvitationAccept)
	router.Delete("/invitations/:id", s.DeleteInvitation)

	router.Post("/membership/repair", s.PostMembershipRepair)
}
