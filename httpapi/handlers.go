package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-payroll-link/core"
)

type linkTokenRequest struct {
	UserID     string `json:"user_id"`
	EmployerID string `json:"employer_id"`
	Email      string `json:"email"`
}

type linkTokenResponse struct {
	LinkToken  string     `json:"link_token"`
	Expiration *time.Time `json:"expiration,omitempty"`
	RequestID  string     `json:"request_id,omitempty"`
	Mode       string     `json:"mode"`
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id,omitempty"`
	Mode        string `json:"mode"`
}

type snapshotRequest struct {
	AccessToken string `json:"access_token"`
}

func (s *Server) handleMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": s.service.Mode().String()})
}

func (s *Server) handleLinkToken(c *gin.Context) {
	var req linkTokenRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	session, err := s.service.CreateLinkSession(c.Request.Context(), core.UserIdentity{
		UserID:     strings.TrimSpace(req.UserID),
		EmployerID: strings.TrimSpace(req.EmployerID),
		Email:      strings.TrimSpace(req.Email),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, linkTokenResponse{
		LinkToken:  session.Token,
		Expiration: session.Expiration,
		RequestID:  session.RequestID,
		Mode:       session.Mode.String(),
	})
}

func (s *Server) handleExchange(c *gin.Context) {
	var req exchangeRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := s.service.ExchangePublicCredential(c.Request.Context(), req.PublicToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchangeResponse{
		AccessToken: result.AccessCredential,
		ItemID:      result.ItemID,
		RequestID:   result.RequestID,
		Mode:        result.Mode.String(),
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	var req snapshotRequest
	if !bindJSON(c, &req) {
		return
	}
	snapshot, err := s.service.FetchPayrollSnapshot(c.Request.Context(), req.AccessToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func bindJSON(c *gin.Context, target any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodyBytes)
	if err := c.ShouldBindJSON(target); err != nil {
		writeError(c, core.InvalidInputError("httpapi: invalid JSON body", map[string]any{"reason": err.Error()}))
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, target any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, target)
}
