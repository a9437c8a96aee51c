package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alpes214/crawler/internal/api/dto"
	"github.com/alpes214/crawler/internal/api/response"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/proxyalloc"
)

type HostHandler struct {
	DB    *gorm.DB
	Alloc *proxyalloc.Allocator
}

func NewHostHandler(db *gorm.DB, alloc *proxyalloc.Allocator) *HostHandler {
	return &HostHandler{DB: db, Alloc: alloc}
}

func (h *HostHandler) CreateHost(c *gin.Context) {
	var req dto.CreateHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}

	host := model.Host{
		Name:            req.Name,
		BaseURL:         req.BaseURL,
		ParserTag:       req.ParserTag,
		MinSpacingSec:   req.MinSpacingSec,
		MaxInFlight:     req.MaxInFlight,
		DefaultInterval: time.Duration(req.DefaultInterval) * time.Second,
		Active:          true,
		UserAgent:       req.UserAgent,
		RobotsPolicy:    req.RobotsPolicy,
	}
	if err := h.DB.Create(&host).Error; err != nil {
		response.ServerError(c, err)
		return
	}
	response.OkWithMessage(c, "host created", toHostResponse(&host))
}

func (h *HostHandler) GetHost(c *gin.Context) {
	id, err := parseUintParam(c, "hostId")
	if err != nil {
		response.BadRequest(c, "invalid host id", err)
		return
	}
	var host model.Host
	if err := h.DB.First(&host, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Ok(c, toHostResponse(&host))
}

func (h *HostHandler) ListHosts(c *gin.Context) {
	var hosts []model.Host
	if err := h.DB.Order("created_at desc").Find(&hosts).Error; err != nil {
		response.ServerError(c, err)
		return
	}
	out := make([]dto.HostResponse, 0, len(hosts))
	for i := range hosts {
		out = append(out, toHostResponse(&hosts[i]))
	}
	response.Ok(c, out)
}

func (h *HostHandler) BindProxy(c *gin.Context) {
	hostID, err := parseUintParam(c, "hostId")
	if err != nil {
		response.BadRequest(c, "invalid host id", err)
		return
	}
	var req dto.BindProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	binding, err := h.Alloc.Bind(c.Request.Context(), hostID, req.ProxyID, req.Priority)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "proxy bound", binding)
}

func (h *HostHandler) UnbindProxy(c *gin.Context) {
	hostID, err := parseUintParam(c, "hostId")
	if err != nil {
		response.BadRequest(c, "invalid host id", err)
		return
	}
	proxyID, err := parseUintParam(c, "proxyId")
	if err != nil {
		response.BadRequest(c, "invalid proxy id", err)
		return
	}
	if err := h.Alloc.Unbind(c.Request.Context(), hostID, proxyID); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "proxy unbound", nil)
}

func (h *HostHandler) ProxyStats(c *gin.Context) {
	hostID, err := parseUintParam(c, "hostId")
	if err != nil {
		response.BadRequest(c, "invalid host id", err)
		return
	}
	stats, err := h.Alloc.Stats(c.Request.Context(), hostID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Ok(c, stats)
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

func toHostResponse(h *model.Host) dto.HostResponse {
	return dto.HostResponse{
		ID:            h.ID,
		Name:          h.Name,
		BaseURL:       h.BaseURL,
		ParserTag:     h.ParserTag,
		MinSpacingSec: h.MinSpacingSec,
		MaxInFlight:   h.MaxInFlight,
		Active:        h.Active,
		RobotsPolicy:  h.RobotsPolicy,
	}
}
