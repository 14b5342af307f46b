package activity

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/steadhac/finbot-ctf/config"
	"github.com/steadhac/finbot-ctf/middleware"
	"github.com/steadhac/finbot-ctf/models"
	"github.com/steadhac/finbot-ctf/services"
	"github.com/steadhac/finbot-ctf/utils/response"
)

const ErrInvalidVendorID = "Invalid vendor_id parameter"

var stream *services.ActivityStream

// ActivityItem is one activity event decorated with its category's display style
type ActivityItem struct {
	models.ActivityEvent
	CategoryLabel string `json:"category_label"`
	CategoryIcon  string `json:"category_icon"`
	CategoryColor string `json:"category_color"`
}

// ActivityResponse is one page of the caller's activity, newest first
type ActivityResponse struct {
	Items    []ActivityItem `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasMore  bool           `json:"has_more"`
}

func buildActivityItems(events []models.ActivityEvent) []ActivityItem {
	items := make([]ActivityItem, 0, len(events))
	for _, event := range events {
		style := config.StyleForCategory(event.Category)
		items = append(items, ActivityItem{
			ActivityEvent: event,
			CategoryLabel: style.Label,
			CategoryIcon:  style.Icon,
			CategoryColor: style.Color,
		})
	}
	return items
}

// GetActivity Get the caller's activity feed
// @Summary Get activity feed
// @Description Get one page of the caller's activity, newest first, optionally filtered by category, workflow, or vendor
// @Tags Activity
// @Accept json
// @Produce json
// @Param category query string false "Filter by category"
// @Param workflow_id query string false "Filter by workflow id"
// @Param vendor_id query int false "Filter by vendor id"
// @Param page query int false "Page number, starting at 1"
// @Param page_size query int false "Page size"
// @Success 200 {object} ActivityResponse
// @Failure 401 {object} map[string]string
// @Router /activity [get]
// @Security Bearer
func GetActivity(c *gin.Context) {
	session := middleware.GetSession(c)

	filter := services.ActivityFilter{
		Category:   c.Query("category"),
		WorkflowID: c.Query("workflow_id"),
	}
	if raw := c.Query("vendor_id"); raw != "" {
		vendorID, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidVendorID})
			return
		}
		filter.VendorID = &vendorID
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "0"))

	page, err := stream.Query(c.Request.Context(), session.Namespace, session.UserID, filter)
	if err != nil {
		response.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, ActivityResponse{
		Items:    buildActivityItems(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	})
}
