package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mint-desk/pkg/config"
	"mint-desk/pkg/middleware"
	"mint-desk/pkg/models"
	"mint-desk/pkg/reconcile"
	"mint-desk/pkg/services"
)

// redirectCookie marks a visitor who has already been sent to checkout.
const redirectCookie = "redirected"

// ViewSource serves the reconciled dashboard view.
type ViewSource interface {
	Current() *reconcile.View
	Listen() (<-chan *reconcile.View, func())
}

// ReadinessChecker is implemented by stores that can report a lost
// connection.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	submissionService services.MintSubmissionService
	views             ViewSource
	storeHealth       ReadinessChecker
	config            *config.Config
	log               *zap.Logger
}

// NewHandlers creates a new Handlers instance. storeHealth may be nil.
func NewHandlers(
	submissionService services.MintSubmissionService,
	views ViewSource,
	storeHealth ReadinessChecker,
	config *config.Config,
	log *zap.Logger,
) *Handlers {
	return &Handlers{
		submissionService: submissionService,
		views:             views,
		storeHealth:       storeHealth,
		config:            config,
		log:               log,
	}
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	if h.storeHealth != nil {
		if err := h.storeHealth.Ready(c.Request.Context()); err != nil {
			h.log.Warn("Store not ready", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}

	dashboard := "loading"
	if h.views.Current() != nil {
		dashboard = "ready"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"dashboard": dashboard,
	})
}

// Storefront sends first-time visitors to checkout. Visitors coming back
// from the payment page carry a status param or the redirect cookie and get
// the claim details instead.
func (h *Handlers) Storefront(c *gin.Context) {
	_, cookieErr := c.Cookie(redirectCookie)
	if c.Query("status") == "" && cookieErr != nil && h.config.PaymentRedirectURL != "" {
		c.SetCookie(redirectCookie, "true", 3600, "/", "", false, true)
		c.Redirect(http.StatusFound, h.config.PaymentRedirectURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contractAddress":    h.config.ContractAddress,
		"chainId":            h.config.ChainID,
		"tokenId":            h.config.TokenID,
		"destinationAddress": h.config.DestinationAddress,
		"paymentStatus":      c.Query("status"),
	})
}

// HandleMintRequest records a claim submitted from the storefront form
func (h *Handlers) HandleMintRequest(c *gin.Context) {
	var req models.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug("Error parsing JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format"})
		return
	}

	receipt, err := h.submissionService.Submit(c.Request.Context(), req.MintFormData, req.Purchase)
	var verr *services.ValidationError
	var ferr *services.SubmissionFailedError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": verr.Fields})
		return
	case errors.As(err, &ferr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Something went wrong, please try again later"})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       receipt.ID,
		"tokenId":  receipt.TokenID,
		"redirect": h.config.ThankYouURL,
	})
}

// HandleStatusUpdate stores the on-chain outcome of a claim
func (h *Handlers) HandleStatusUpdate(c *gin.Context) {
	var update models.StatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	err := h.submissionService.UpdateStatus(c.Request.Context(), c.Param("id"), update)
	switch {
	case errors.Is(err, services.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mint request not found"})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Something went wrong, please try again later"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// People returns the latest reconciled dashboard view
func (h *Handlers) People(c *gin.Context) {
	view := h.views.Current()
	if view == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Dashboard is loading"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// PeopleStream pushes every new view to the dashboard over Server-Sent Events
func (h *Handlers) PeopleStream(c *gin.Context) {
	views, stop := h.views.Listen()
	defer stop()
	h.log.Debug("Dashboard stream opened", zap.String("wallet", c.GetString(middleware.WalletContextKey)))

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case view := <-views:
			c.SSEvent("view", view)
			return true
		}
	})
}
