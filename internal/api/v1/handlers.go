package apiv1

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/tobiaslindner/billhive/internal/pkg/catalog"
	"github.com/tobiaslindner/billhive/internal/pkg/credits"
	"github.com/tobiaslindner/billhive/internal/pkg/invite"
	"github.com/tobiaslindner/billhive/internal/pkg/proration"
	"github.com/tobiaslindner/billhive/internal/pkg/subscription"
	"github.com/tobiaslindner/billhive/internal/pkg/team"
)

// APIServer carries the wired services behind the v1 endpoints.
type APIServer struct {
	Catalog    *catalog.Service
	Calculator *proration.Calculator
	Credits    *credits.Service
	Transfers  *credits.TransferEngine
	Ledger     *subscription.Ledger
	Team       *team.Service
	Invites    *invite.Service
}

func NewAPIServer(
	catalogSvc *catalog.Service,
	calc *proration.Calculator,
	creditSvc *credits.Service,
	transfers *credits.TransferEngine,
	ledger *subscription.Ledger,
	teamSvc *team.Service,
	invites *invite.Service,
) *APIServer {
	return &APIServer{
		Catalog:    catalogSvc,
		Calculator: calc,
		Credits:    creditSvc,
		Transfers:  transfers,
		Ledger:     ledger,
		Team:       teamSvc,
		Invites:    invites,
	}
}

// userID reads the authenticated user from the X-User-ID header set by the
// upstream gateway.
func userID(c *fiber.Ctx) (uint, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, errUnauthenticated
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errUnauthenticated
	}
	return uint(id), nil
}

var errUnauthenticated = errors.New("missing or invalid X-User-ID header")

// writeError maps service sentinels onto HTTP statuses with a uniform JSON
// body.
func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, errUnauthenticated):
		status, code = fiber.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, catalog.ErrPlanNotFound):
		status, code = fiber.StatusNotFound, "plan_not_found"
	case errors.Is(err, catalog.ErrUnavailable):
		status, code = fiber.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, credits.ErrInsufficientCredits):
		status, code = fiber.StatusUnprocessableEntity, "insufficient_credits"
	case errors.Is(err, credits.ErrInvalidAmount):
		status, code = fiber.StatusBadRequest, "invalid_amount"
	case errors.Is(err, credits.ErrNotTeamMember):
		status, code = fiber.StatusForbidden, "not_team_member"
	case errors.Is(err, credits.ErrNoActiveSubscription):
		status, code = fiber.StatusConflict, "no_active_subscription"
	case errors.Is(err, subscription.ErrNoCurrentSubscription):
		status, code = fiber.StatusConflict, "no_current_subscription"
	case errors.Is(err, team.ErrCapacityExceeded):
		status, code = fiber.StatusConflict, "capacity_exceeded"
	case errors.Is(err, team.ErrInvalidRole):
		status, code = fiber.StatusBadRequest, "invalid_role"
	case errors.Is(err, team.ErrMemberNotFound):
		status, code = fiber.StatusNotFound, "member_not_found"
	case errors.Is(err, invite.ErrInvitationInvalid):
		status, code = fiber.StatusGone, "invitation_invalid"
	case errors.Is(err, invite.ErrDuplicateInvite):
		status, code = fiber.StatusConflict, "duplicate_invitation"
	case errors.Is(err, invite.ErrInvalidEmail):
		status, code = fiber.StatusBadRequest, "invalid_email"
	}

	if code == "internal_error" {
		log.Errorf("api: request failed: %v", err)
		return c.Status(status).JSON(fiber.Map{"error": code, "message": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": err.Error()})
}

// GetPing handles the health check endpoint.
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

// GetPlans lists the active plan catalog.
func (s *APIServer) GetPlans(c *fiber.Ctx) error {
	plans, err := s.Catalog.ListPlans(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// GetPlan returns a single active plan by ID.
func (s *APIServer) GetPlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid plan id"})
	}
	plan, err := s.Catalog.GetPlan(c.Context(), uint(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(plan)
}

// GetSubscription returns the caller's current active subscription, if any.
func (s *APIServer) GetSubscription(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	sub, err := s.Ledger.GetActiveSubscription(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	if sub == nil {
		return c.JSON(fiber.Map{"subscription": nil})
	}
	return c.JSON(fiber.Map{"subscription": sub, "remaining_days": sub.RemainingDays(time.Now())})
}

// GetUpgrades lists the plans the caller can upgrade to, each with a
// prorated cost quote.
func (s *APIServer) GetUpgrades(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	sub, err := s.Ledger.GetActiveSubscription(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	if sub == nil {
		return writeError(c, subscription.ErrNoCurrentSubscription)
	}
	balance, err := s.Credits.GetBalance(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	quotes, err := s.Calculator.AvailableUpgrades(c.Context(), sub, balance, time.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"upgrades": quotes})
}

// GetUpgradeQuote prices an upgrade to one specific plan without applying it.
func (s *APIServer) GetUpgradeQuote(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	planID, err := c.ParamsInt("id")
	if err != nil || planID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid plan id"})
	}
	sub, err := s.Ledger.GetActiveSubscription(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	if sub == nil {
		return writeError(c, subscription.ErrNoCurrentSubscription)
	}
	balance, err := s.Credits.GetBalance(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	quote, err := s.Calculator.UpgradeCost(c.Context(), sub, uint(planID), balance, time.Now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(quote)
}

type changePlanRequest struct {
	PlanID        uint           `json:"plan_id"`
	TransactionID string         `json:"transaction_id"`
	Amount        string         `json:"amount"`
	Metadata      map[string]any `json:"metadata"`
}

// PostPlanChange applies a plan change: the old subscription is closed, the
// new one opened and the credit balance reset, all in one transaction.
func (s *APIServer) PostPlanChange(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req changePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	if req.PlanID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "plan_id is required"})
	}
	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid amount"})
		}
	}

	sub, err := s.Ledger.RegisterPlanChange(c.Context(), uid, nil, req.PlanID, req.TransactionID, amount, req.Metadata)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscription": sub})
}

// GetCredits returns the caller's current credit balance.
func (s *APIServer) GetCredits(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	balance, err := s.Credits.GetBalance(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"balance": balance})
}

// GetCreditTransactions lists the caller's ledger entries, newest first.
func (s *APIServer) GetCreditTransactions(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	limit := c.QueryInt("limit", 50)
	txns, err := s.Credits.ListTransactions(c.Context(), uid, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"transactions": txns})
}

type transferRequest struct {
	ToUserID uint `json:"to_user_id"`
	Amount   int  `json:"amount"`
}

// PostCreditTransfer moves credits from the caller to one of their team
// members.
func (s *APIServer) PostCreditTransfer(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	result, err := s.Transfers.TransferCredits(c.Context(), uid, req.ToUserID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

type usageRequest struct {
	OwnerID   uint   `json:"owner_id"`
	Amount    int    `json:"amount"`
	ServiceID string `json:"service_id"`
}

// PostCreditUsage debits credits for service consumption. Team members may
// spend against their owner's balance; the ledger records who spent them.
func (s *APIServer) PostCreditUsage(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req usageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	ownerID := req.OwnerID
	if ownerID == 0 {
		ownerID = uid
	}
	txn, err := s.Transfers.UseCredits(c.Context(), ownerID, req.Amount, uid, req.ServiceID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(txn)
}

// GetTeamMembers lists the caller's team, owner first.
func (s *APIServer) GetTeamMembers(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	members, err := s.Team.ListMembers(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"members": members})
}

// GetTeamSeats reports seat usage against the caller's plan limit.
func (s *APIServer) GetTeamSeats(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	current, max, err := s.Team.CountSeats(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"current": current, "max": max})
}

// DeleteTeamMember marks a member removed; their rows stay for the audit
// trail.
func (s *APIServer) DeleteTeamMember(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	memberID, err := c.ParamsInt("id")
	if err != nil || memberID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid member id"})
	}
	if err := s.Team.RemoveMember(c.Context(), uid, uint(memberID)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// PutTeamMemberRole changes an active member's role.
func (s *APIServer) PutTeamMemberRole(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	memberID, err := c.ParamsInt("id")
	if err != nil || memberID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid member id"})
	}
	var req changeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	if err := s.Team.ChangeRole(c.Context(), uid, uint(memberID), req.Role); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// PostInvitation issues a pending invitation if a seat is free.
func (s *APIServer) PostInvitation(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid request body"})
	}
	inv, err := s.Invites.Invite(c.Context(), uid, req.Email, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	// The token is emitted exactly once, here. List and preview responses
	// never carry it.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"invitation": inv, "token": inv.Token})
}

// GetInvitations lists every invitation the caller has issued.
func (s *APIServer) GetInvitations(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	invitations, err := s.Invites.ListByOwner(c.Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"invitations": invitations})
}

// GetInvitationByToken previews an invitation without consuming it.
func (s *APIServer) GetInvitationByToken(c *fiber.Ctx) error {
	inv, err := s.Invites.GetByToken(c.Context(), c.Params("token"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(inv)
}

type acceptRequest struct {
	Token string `json:"token"`
}

// PostInvitationAccept redeems a token and creates the membership.
func (s *APIServer) PostInvitationAccept(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req acceptRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "token is required"})
	}
	member, err := s.Invites.Accept(c.Context(), req.Token, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(member)
}

// DeleteInvitation cancels one of the caller's pending invitations.
func (s *APIServer) DeleteInvitation(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	invitationID, err := c.ParamsInt("id")
	if err != nil || invitationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "invalid invitation id"})
	}
	if err := s.Invites.Cancel(c.Context(), uid, uint(invitationID)); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type repairRequest struct {
	Email   string `json:"email"`
	OwnerID *uint  `json:"owner_id"`
}

// PostMembershipRepair re-derives a lost membership from pending invitations
// or a caller-supplied owner. It never invents an owner on its own.
func (s *APIServer) PostMembershipRepair(c *fiber.Ctx) error {
	uid, err := userID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req repairRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "email is required"})
	}
	member, err := s.Invites.RepairMembership(c.Context(), uid, req.Email, req.OwnerID)
	if err != nil {
		return writeError(c, err)
	}
	if member == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_membership_evidence", "message": "no invitation or owner reference found for this account"})
	}
	return c.JSON(member)
}
