package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/discovery"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/models"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/repository"
)

// Operations are the long-running discovery operations.
type Operations interface {
	Discover(ctx context.Context, in discovery.DiscoverInput) (*discovery.DiscoverResult, error)
	Populate(ctx context.Context, in discovery.PopulateInput) (*discovery.PopulateResult, error)
	DeepCrawl(ctx context.Context, in discovery.CrawlInput) (*discovery.CrawlResult, error)
}

// TypeLister reads persisted content types.
type TypeLister interface {
	ListBySite(ctx context.Context, siteID string) ([]models.ContentTypeDescriptor, error)
}

// StateReader reads a site's sync checkpoint.
type StateReader interface {
	Get(ctx context.Context, siteID string) (*models.SyncState, error)
}

// SiteHandler serves the /sites endpoints.
type SiteHandler struct {
	ops       Operations
	types     TypeLister
	states    StateReader
	opTimeout time.Duration
	log       logger.Logger
}

// NewSiteHandler creates a handler. opTimeout bounds each operation; zero means unbounded.
func NewSiteHandler(ops Operations, types TypeLister, states StateReader, opTimeout time.Duration, log logger.Logger) *SiteHandler {
	return &SiteHandler{ops: ops, types: types, states: states, opTimeout: opTimeout, log: log}
}

type discoverRequest struct {
	SiteBaseURL  string `binding:"required" json:"siteBaseUrl"`
	PlatformHint string `json:"platformHint"`
}

type populateRequest struct {
	SiteBaseURL    string                         `json:"siteBaseUrl"`
	ConfirmedTypes []models.ContentTypeDescriptor `binding:"required" json:"confirmedTypes"`
	ItemCapPerType int                            `binding:"gte=0"    json:"itemCapPerType"`
}

type crawlRequest struct {
	BatchSize   int  `binding:"gte=0" json:"batchSize"`
	ForceRescan bool `json:"forceRescan"`
}

// Discover handles POST /sites/:id/discover.
func (h *SiteHandler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	caller := IdentityFrom(c)
	ctx, cancel := h.operationContext(c)
	defer cancel()

	res, err := h.ops.Discover(ctx, discovery.DiscoverInput{
		SiteID:       c.Param("id"),
		SiteBaseURL:  req.SiteBaseURL,
		PlatformHint: req.PlatformHint,
		AccountID:    caller.AccountID,
		UserID:       caller.UserID,
	})
	if err != nil {
		h.respondError(c, "discover", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Populate handles POST /sites/:id/populate.
func (h *SiteHandler) Populate(c *gin.Context) {
	var req populateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	res, err := h.ops.Populate(ctx, discovery.PopulateInput{
		SiteID:         c.Param("id"),
		SiteBaseURL:    req.SiteBaseURL,
		ConfirmedTypes: req.ConfirmedTypes,
		ItemCapPerType: req.ItemCapPerType,
	})
	if err != nil {
		h.respondError(c, "populate", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Crawl handles POST /sites/:id/crawl. The body is optional.
func (h *SiteHandler) Crawl(c *gin.Context) {
	var req crawlRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	ctx, cancel := h.operationContext(c)
	defer cancel()

	res, err := h.ops.DeepCrawl(ctx, discovery.CrawlInput{
		SiteID:      c.Param("id"),
		BatchSize:   req.BatchSize,
		ForceRescan: req.ForceRescan,
	})
	if err != nil {
		h.respondError(c, "crawl", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncState handles GET /sites/:id/sync-state.
func (h *SiteHandler) SyncState(c *gin.Context) {
	state, err := h.states.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "sync-state", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// EntityTypes handles GET /sites/:id/entity-types.
func (h *SiteHandler) EntityTypes(c *gin.Context) {
	types, err := h.types.ListBySite(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "entity-types", err)
		return
	}
	if types == nil {
		types = []models.ContentTypeDescriptor{}
	}
	c.JSON(http.StatusOK, gin.H{"contentTypes": types, "count": len(types)})
}

// operationContext detaches the run from the request so a caller that
// disconnects does not abort it. Request-scoped values survive.
func (h *SiteHandler) operationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.opTimeout > 0 {
		return context.WithTimeout(ctx, h.opTimeout)
	}
	return context.WithCancel(ctx)
}

func (h *SiteHandler) respondError(c *gin.Context, op string, err error) {
	log := logger.FromContext(c.Request.Context(), h.log).With(
		logger.String("operation", op),
		logger.SiteID(c.Param("id")),
	)
	switch {
	case errors.Is(err, discovery.ErrInvalidInput):
		log.Debug("Rejected request", logger.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
	default:
		log.Error("Operation failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
