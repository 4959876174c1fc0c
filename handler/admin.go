package handler

import (
	stderrors "errors"
	"net/http"

	"kyb-gateway/model"
	"kyb-gateway/repository"
	"kyb-gateway/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminHandler handles admin operations
type AdminHandler struct {
	clientService service.ClientServiceInterface
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(clientService service.ClientServiceInterface) *AdminHandler {
	return &AdminHandler{
		clientService: clientService,
	}
}

// CreateClientRequest represents the request to create a new client
type CreateClientRequest struct {
	Name string `json:"name" binding:"required"`
	QPS  int    `json:"qps" binding:"min=0"`
}

// CreateClientResponse represents the response after creating a client
type CreateClientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	APIKey    string `json:"api_key"` // 仅创建时返回一次
	QPS       int    `json:"qps"`
	Status    int    `json:"status"`
	CreatedAt string `json:"created_at"`
}

// UpdateStatusRequest represents the request to update client status
type UpdateStatusRequest struct {
	Status *int `json:"status" binding:"required,min=0,max=1"`
}

// UpdateQPSRequest represents the request to change a client's rate limit
type UpdateQPSRequest struct {
	QPS int `json:"qps" binding:"required,min=1"`
}

// CreateClient creates a new API client
func (h *AdminHandler) CreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 40001, "Invalid request parameters", err)
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), req.Name, req.QPS)
	if err != nil {
		if stderrors.Is(err, service.ErrInvalidArgument) {
			respondError(c, http.StatusBadRequest, 40001, "Invalid request parameters", err)
			return
		}
		respondError(c, http.StatusInternalServerError, 50001, "Failed to create client", err)
		return
	}

	c.JSON(http.StatusCreated, CreateClientResponse{
		ID:        client.ID.Hex(),
		Name:      client.Name,
		APIKey:    client.APIKey,
		QPS:       client.QPS,
		Status:    client.Status,
		CreatedAt: client.CreatedAt.Format("2006-01-02 15:04:05"),
	})
}

// ListClients lists all clients with pagination
func (h *AdminHandler) ListClients(c *gin.Context) {
	offset, limit := pagination(c, 20)

	clients, err := h.clientService.ListClients(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 50002, "Failed to retrieve clients", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"clients": clients,
		"offset":  offset,
		"limit":   limit,
		"count":   len(clients),
	})
}

// GetClient retrieves a specific client by ID
func (h *AdminHandler) GetClient(c *gin.Context) {
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	client, err := h.clientService.GetClientByID(c.Request.Context(), id)
	if err != nil {
		respondLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// UpdateClientStatus updates the status of a client (enable/disable)
func (h *AdminHandler) UpdateClientStatus(c *gin.Context) {
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 40004, "Invalid status parameters", err)
		return
	}

	if err := h.clientService.UpdateClientStatus(c.Request.Context(), id, *req.Status); err != nil {
		respondLookupError(c, err)
		return
	}

	statusText := "active"
	if *req.Status == model.ClientStatusDisabled {
		statusText = "disabled"
	}
	h.respondUpdated(c, id, "Client status updated to "+statusText)
}

// UpdateClientQPS changes the per-client rate limit
func (h *AdminHandler) UpdateClientQPS(c *gin.Context) {
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	var req UpdateQPSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, 40003, "Invalid qps parameters", err)
		return
	}

	if err := h.clientService.UpdateClientQPS(c.Request.Context(), id, req.QPS); err != nil {
		respondLookupError(c, err)
		return
	}
	h.respondUpdated(c, id, "Client qps updated")
}

// DeleteClient removes a client
func (h *AdminHandler) DeleteClient(c *gin.Context) {
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	if err := h.clientService.DeleteClient(c.Request.Context(), id); err != nil {
		respondLookupError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetClientProviderCalls retrieves provider call records for a specific client
func (h *AdminHandler) GetClientProviderCalls(c *gin.Context) {
	id, ok := parseClientID(c)
	if !ok {
		return
	}

	offset, limit := pagination(c, 20)

	calls, err := h.clientService.GetClientProviderCalls(c.Request.Context(), id, offset, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 50007, "Failed to retrieve provider calls", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"calls":  calls,
		"offset": offset,
		"limit":  limit,
		"count":  len(calls),
	})
}

// GetStats retrieves client counts and provider call outcomes
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.clientService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, 50008, "Failed to retrieve statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) respondUpdated(c *gin.Context, id primitive.ObjectID, message string) {
	client, err := h.clientService.GetClientByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, 50006, "Failed to retrieve updated client", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"client":  client,
	})
}

func parseClientID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, 40002, "Invalid client ID format", err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func respondLookupError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		respondError(c, http.StatusNotFound, 40401, "Client not found", err)
	case stderrors.Is(err, service.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, 40001, "Invalid request parameters", err)
	default:
		respondError(c, http.StatusInternalServerError, 50005, "Failed to update client", err)
	}
}
