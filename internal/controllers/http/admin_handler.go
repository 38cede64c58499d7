package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/feed"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errNoSession = errors.New("live view is not running")

const streamHeartbeat = 25 * time.Second

// ListRecords serves one table from the live view. refresh=true re-reads the
// table first; if that fails the cached rows are returned marked stale.
func (h *Handler) ListRecords(c *gin.Context) {
	table, err := domain.ParseTable(c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, MessageResponse{OK: false, Error: errNoSession.Error()})
		return
	}

	stale := false
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := h.session.Refresh(c.Request.Context(), table); err != nil {
			h.log.Warn("refresh failed", zap.String("table", string(table)), zap.Error(err))
			stale = true
		}
	}

	filter := c.Query("status")
	if table == domain.TableReviews && c.Query("rating") != "" {
		filter = c.Query("rating")
	}
	if filter == "" {
		filter = feed.FilterAll
	}
	recs, err := h.session.Query(table, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RecordsResponse{OK: true, Table: table, Filter: filter, Records: recs, Stale: stale})
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}

	order, err := h.svc.Status.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OrderResponse{OK: true, Order: order, Message: "Status updated to " + string(order.Status)})
}

func (h *Handler) updateStatus(table domain.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.recordID(c)
		if !ok {
			return
		}
		var req StatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
			return
		}
		if err := h.svc.Status.UpdateStatus(c.Request.Context(), table, id, req.Status); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, MessageResponse{OK: true, Message: "Status updated"})
	}
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	table, err := domain.ParseTable(c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	id, ok := h.recordID(c)
	if !ok {
		return
	}
	if err := h.svc.Admin.Delete(c.Request.Context(), table, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{OK: true, Message: "Deleted"})
}

func (h *Handler) MarkSeen(c *gin.Context) {
	table, err := domain.ParseTable(c.Param("table"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req SeenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}

	ids := req.IDs
	if len(ids) == 0 && h.session != nil {
		recs, err := h.session.Query(table, feed.FilterAll)
		if err != nil {
			h.fail(c, err)
			return
		}
		for _, r := range recs {
			if r.Unseen() {
				ids = append(ids, r.RecordID())
			}
		}
	}

	if err := h.svc.Admin.MarkSeen(c.Request.Context(), table, ids); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "marked": len(ids)})
}

func (h *Handler) Notifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Admin.UnseenCounts(c.Request.Context()))
}

func (h *Handler) Activity(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusOK, gin.H{"activity": []feed.Activity{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": h.session.Activity()})
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Admin.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Stream relays applied change events as server-sent events until the
// client goes away or the session is torn down.
func (h *Handler) Stream(c *gin.Context) {
	if h.session == nil {
		c.JSON(http.StatusServiceUnavailable, MessageResponse{OK: false, Error: errNoSession.Error()})
		return
	}
	events, stop := h.session.Watch()
	defer stop()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(evt.RoutingKey(), evt)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// AuditTrail lists audit entries for a payment reference or order id.
func (h *Handler) AuditTrail(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, MessageResponse{OK: false, Error: "audit trail is not configured"})
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 {
		limit = 50
	}
	entries, err := h.audit.List(c.Request.Context(), c.Param("entity"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "entries": entries})
}

func (h *Handler) recordID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}
