/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redhat-data-and-ai/userpool/pkg/config"
	"github.com/redhat-data-and-ai/userpool/pkg/logger"
	"github.com/redhat-data-and-ai/userpool/pkg/userpool"
)

type Handlers struct {
	config *config.AppConfig
	pool   userpool.UserPool
	now    func() time.Time
}

func NewHandlers(cfg *config.AppConfig, pool userpool.UserPool) *Handlers {
	return &Handlers{
		config: cfg,
		pool:   pool,
		now:    time.Now,
	}
}

// UserRequest is the body accepted when creating or replacing a user
type UserRequest struct {
	Username         string               `json:"Username"`
	Password         string               `json:"Password"`
	UserStatus       userpool.UserStatus  `json:"UserStatus"`
	ConfirmationCode string               `json:"ConfirmationCode"`
	Attributes       []userpool.Attribute `json:"Attributes"`
	Enabled          *bool                `json:"Enabled"`
}

// toUser builds the record to store, keeping the create date of prev when it exists
func (r UserRequest) toUser(username string, prev *userpool.User, now time.Time) userpool.User {
	user := userpool.NewUser(username, r.Password, r.Attributes, now)
	if prev != nil {
		user.UserCreateDate = prev.UserCreateDate
	}
	if r.UserStatus != "" {
		user.UserStatus = r.UserStatus
	}
	if r.Enabled != nil {
		user.Enabled = *r.Enabled
	}
	user.ConfirmationCode = r.ConfirmationCode
	return user
}

func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":             h.config.App.Name,
		"version":             h.config.App.Version,
		"status":              "running",
		"username_attributes": h.pool.Options().UsernameAttributes,
	})
}

func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.pool.ListUsers(c.Request.Context())
	if err != nil {
		h.internalError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser resolves the path parameter by username or any configured username attribute
func (h *Handlers) GetUser(c *gin.Context) {
	identifier := c.Param("username")

	user, err := h.pool.GetUserByUsername(c.Request.Context(), identifier)
	if err != nil {
		h.internalError(c, err, "failed to fetch user")
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) CreateUser(c *gin.Context) {
	ctx := c.Request.Context()

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if req.Username == "" {
		if !h.pool.Options().HasUsernameAttributes() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username is required"})
			return
		}
		req.Username = userpool.NewUsername()
	}

	existing, err := h.findByUsername(c, req.Username)
	if err != nil {
		h.internalError(c, err, "failed to fetch user")
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		return
	}

	user := req.toUser(req.Username, nil, h.now())
	if err := h.pool.SaveUser(ctx, user); err != nil {
		h.saveError(c, err)
		return
	}

	logger.Logger(ctx).WithField("username", user.Username).Info("created user")
	h.respondWithUser(c, http.StatusCreated, user.Username)
}

// PutUser replaces the user stored under the path username; the path wins over the body
func (h *Handlers) PutUser(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Param("username")

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	prev, err := h.findByUsername(c, username)
	if err != nil {
		h.internalError(c, err, "failed to fetch user")
		return
	}

	user := req.toUser(username, prev, h.now())
	if err := h.pool.SaveUser(ctx, user); err != nil {
		h.saveError(c, err)
		return
	}

	status := http.StatusOK
	if prev == nil {
		status = http.StatusCreated
	}
	h.respondWithUser(c, status, username)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	username := c.Param("username")

	if err := h.pool.DeleteUser(ctx, username); err != nil {
		h.saveError(c, err)
		return
	}

	logger.Logger(ctx).WithField("username", username).Info("deleted user")
	c.Status(http.StatusNoContent)
}

// findByUsername ignores alias matches so that a write never lands on another user's record
func (h *Handlers) findByUsername(c *gin.Context, username string) (*userpool.User, error) {
	user, err := h.pool.GetUserByUsername(c.Request.Context(), username)
	if err != nil || user == nil || user.Username != username {
		return nil, err
	}
	return user, nil
}

func (h *Handlers) respondWithUser(c *gin.Context, status int, username string) {
	user, err := h.findByUsername(c, username)
	if err != nil {
		h.internalError(c, err, "failed to fetch user")
		return
	}
	c.JSON(status, user)
}

func (h *Handlers) saveError(c *gin.Context, err error) {
	if errors.Is(err, userpool.ErrMissingUsername) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.internalError(c, err, "failed to update user pool")
}

func (h *Handlers) internalError(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	logger.Logger(c.Request.Context()).WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
