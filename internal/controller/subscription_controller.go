// FILE: internal/controller/subscription_controller.go
// Admin endpoints for the confirmation-email tracker
package controller

import (
	"errors"
	"strconv"
	"strings"

	"subscription-mailer-be/internal/dto"
	"subscription-mailer-be/internal/mapper"
	"subscription-mailer-be/internal/pkg/logger"
	"subscription-mailer-be/internal/pkg/productlink"
	"subscription-mailer-be/internal/pkg/serverutils"
	"subscription-mailer-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SubscriptionController interface {
	RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler)
}

type subscriptionController struct {
	tracker   service.ITrackerService
	delivery  service.IDeliveryService
	poller    service.ISnapshotPoller
	products  *productlink.Mapper
	logger    logger.ILogger
	mapper    *mapper.SubscriptionRecordMapper
	logMapper *mapper.LogMapper
}

// NewSubscriptionController accepts a nil poller when no upstream is
// configured; POST /reconcile then requires a snapshot in the body.
func NewSubscriptionController(
	tracker service.ITrackerService,
	delivery service.IDeliveryService,
	poller service.ISnapshotPoller,
	products *productlink.Mapper,
	logger logger.ILogger,
) SubscriptionController {
	return &subscriptionController{
		tracker:   tracker,
		delivery:  delivery,
		poller:    poller,
		products:  products,
		logger:    logger,
		mapper:    mapper.NewSubscriptionRecordMapper(),
		logMapper: mapper.NewLogMapper(),
	}
}

func (c *subscriptionController) RegisterRoutes(api fiber.Router, jwtMiddleware fiber.Handler) {
	h := api.Group("/subscriptions", jwtMiddleware)

	h.Get("/stats", c.GetStatistics)
	h.Get("/check", c.CheckShouldSend)
	h.Get("/by-email/:email", c.GetByEmail)
	h.Get("/", c.GetAll)
	h.Delete("/", c.ClearAll)

	h.Post("/observations", c.ProcessObservation)
	h.Post("/reconcile", c.Reconcile)

	h.Get("/products", c.GetProducts)
	h.Post("/products", c.AddProduct)
	h.Get("/logs", c.GetLogs)
}

// errorStatus maps tracker errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidObservation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrEmptySnapshot):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSweepInProgress), errors.Is(err, service.ErrLockTimeout):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrStorage):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func failure(ctx *fiber.Ctx, err error) error {
	code := errorStatus(err)
	return ctx.Status(code).JSON(serverutils.ErrorResponse(code, err.Error()))
}

// GetStatistics
// @Summary Subscription email statistics
// @Tags Subscriptions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SubscriptionStatsResponse
// @Router /api/subscriptions/stats [get]
func (c *subscriptionController) GetStatistics(ctx *fiber.Ctx) error {
	stats, err := c.tracker.GetStatistics(ctx.Context())
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Statistics", c.mapper.ToStatsResponse(stats)))
}

func (c *subscriptionController) GetAll(ctx *fiber.Ctx) error {
	records, err := c.tracker.GetAllSubscriptions(ctx.Context())
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscriptions", c.mapper.ToResponses(records)))
}

func (c *subscriptionController) GetByEmail(ctx *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(ctx.Params("email")))
	if email == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "email is required"))
	}

	records, err := c.tracker.FindSubscriptionsByEmail(ctx.Context(), email)
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Subscriptions", c.mapper.ToResponses(records)))
}

// CheckShouldSend
// @Summary Whether a confirmation email is still due
// @Tags Subscriptions
// @Security BearerAuth
// @Param email query string true "Customer email"
// @Param subscription_id query string true "Subscription id"
// @Success 200 {object} dto.ShouldSendResponse
// @Router /api/subscriptions/check [get]
func (c *subscriptionController) CheckShouldSend(ctx *fiber.Ctx) error {
	email := strings.ToLower(strings.TrimSpace(ctx.Query("email")))
	subscriptionId := strings.TrimSpace(ctx.Query("subscription_id"))
	if email == "" || subscriptionId == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "email and subscription_id are required"))
	}

	send, err := c.tracker.ShouldSend(ctx.Context(), email, subscriptionId)
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Checked", dto.ShouldSendResponse{
		Email:          email,
		SubscriptionId: subscriptionId,
		ShouldSend:     send,
	}))
}

// ProcessObservation runs one subscription through the delivery pipeline.
func (c *subscriptionController) ProcessObservation(ctx *fiber.Ctx) error {
	var req dto.ObservationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	outcome, err := c.delivery.Process(ctx.Context(), c.mapper.ObservationFromRequest(&req))
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Observation processed", dto.DeliveryResponse{
		Action:       string(outcome.Action),
		DownloadLink: outcome.DownloadLink,
		Record:       c.mapper.ToResponse(outcome.Record),
	}))
}

// Reconcile sweeps against the snapshot in the body, or fetches a fresh one
// from the upstream when the body is empty.
func (c *subscriptionController) Reconcile(ctx *fiber.Ctx) error {
	if len(ctx.Body()) == 0 {
		if c.poller == nil {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(503, "No upstream configured; send a snapshot in the body"))
		}
		result, err := c.poller.RunOnce(ctx.Context())
		if err != nil {
			return failure(ctx, err)
		}
		return ctx.JSON(serverutils.SuccessResponse("Reconciled", c.mapper.ToReconcileResponse(result.Reconcile)))
	}

	var req dto.ReconcileRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	result, err := c.tracker.Reconcile(ctx.Context(), c.mapper.SnapshotFromRequest(&req))
	if err != nil {
		return failure(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Reconciled", c.mapper.ToReconcileResponse(result)))
}

func (c *subscriptionController) ClearAll(ctx *fiber.Ctx) error {
	if err := c.tracker.ClearAllRecords(ctx.Context()); err != nil {
		return failure(ctx, err)
	}
	c.logger.Warn("HTTP", "Subscription records cleared via admin API", map[string]interface{}{
		"user_id": ctx.Locals("user_id"),
	})
	return ctx.JSON(serverutils.SuccessResponse[any]("All records cleared", nil))
}

func (c *subscriptionController) GetProducts(ctx *fiber.Ctx) error {
	mappings := c.products.Mappings()
	res := make([]dto.ProductMappingResponse, 0, len(mappings))
	for _, m := range mappings {
		res = append(res, dto.ProductMappingResponse{
			ProductName:  m.ProductName,
			DownloadLink: c.products.Resolve(m.ProductName),
		})
	}
	return ctx.JSON(serverutils.SuccessResponse("Product mappings", res))
}

func (c *subscriptionController) AddProduct(ctx *fiber.Ctx) error {
	var req dto.ProductMappingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	c.products.Add(req.ProductName, req.DownloadPath)
	return ctx.JSON(serverutils.SuccessResponse("Product mapping saved", dto.ProductMappingResponse{
		ProductName:  req.ProductName,
		DownloadLink: c.products.Resolve(req.ProductName),
	}))
}

func (c *subscriptionController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	entries, err := c.logger.GetLogs(logger.LogFilter{
		Level:  strings.ToUpper(ctx.Query("level", "")),
		Module: ctx.Query("module", ""),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", c.logMapper.ToLogListResponses(entries)))
}
