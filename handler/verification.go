package handler

import (
	stderrors "errors"
	"net/http"
	"strings"

	"kyb-gateway/errors"
	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/service"

	"github.com/gin-gonic/gin"
)

// VerificationHandler exposes the KYB operations to API clients
type VerificationHandler struct {
	verification service.VerificationServiceInterface
}

func NewVerificationHandler(verification service.VerificationServiceInterface) *VerificationHandler {
	return &VerificationHandler{verification: verification}
}

// CreateApplicant 创建公司申请人
// POST /api/kyb/applicants
func (h *VerificationHandler) CreateApplicant(c *gin.Context) {
	req, ok := bindCompanyRequest(c)
	if !ok {
		return
	}

	result, err := h.verification.CreateApplicant(c.Request.Context(), req.CompanyName, req.Country)
	if err != nil {
		errors.RespondWithProviderError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, result)
}

// IssueAccessToken 为申请人签发 SDK 访问令牌
// POST /api/kyb/applicants/:id/access-token
func (h *VerificationHandler) IssueAccessToken(c *gin.Context) {
	applicantID := strings.TrimSpace(c.Param("id"))
	if applicantID == "" {
		errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError("applicant id is required"))
		return
	}

	// 请求体可省略
	var req model.AccessTokenRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
			return
		}
	}

	result, err := h.verification.IssueAccessToken(c.Request.Context(), applicantID, strings.TrimSpace(req.LevelName))
	if err != nil {
		errors.RespondWithProviderError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result)
}

// Onboard 创建申请人并签发访问令牌
// POST /api/kyb/onboard
func (h *VerificationHandler) Onboard(c *gin.Context) {
	req, ok := bindCompanyRequest(c)
	if !ok {
		return
	}

	result, err := h.verification.Onboard(c.Request.Context(), req.CompanyName, req.Country)
	if err != nil {
		var partial *kyb.PartialCompositeFailure
		if stderrors.As(err, &partial) {
			c.Header("X-Applicant-ID", partial.ApplicantID)
		}
		errors.RespondWithProviderError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, result)
}

func bindCompanyRequest(c *gin.Context) (*model.CompanyRequest, bool) {
	var req model.CompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError(err.Error()))
		return nil, false
	}
	return &req, true
}
