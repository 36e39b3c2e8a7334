package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"usernotify/pkg/middleware"
	"usernotify/pkg/models"
	"usernotify/pkg/rabbitmq"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// EventPublisher defines the interface for publishing lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent) *rabbitmq.PublishHandle
}

// UserHandler handles user-related HTTP requests.
type UserHandler struct {
	DB        *sql.DB
	Publisher EventPublisher
	Source    string
	Logger    *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *sql.DB, pub EventPublisher, source string, logger *slog.Logger) *UserHandler {
	return &UserHandler{DB: db, Publisher: pub, Source: source, Logger: logger.With("component", "users")}
}

// CreateUser godoc
// @Summary      Create a new user
// @Description  Creates a new user and publishes a USER_CREATED event
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request  body      models.CreateUserRequest  true  "Create user request"
// @Success      201      {object}  models.User
// @Failure      400      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)

	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	user := models.User{Name: req.Name, Email: req.Email, Age: *req.Age}
	err := h.DB.QueryRowContext(c.Request.Context(),
		"INSERT INTO users (name, email, age) VALUES ($1, $2, $3) RETURNING id, created_at",
		user.Name, user.Email, user.Age,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		respondError(c, http.StatusConflict, "user with email "+user.Email+" already exists")
		return
	}
	if err != nil {
		h.Logger.Error("failed to create user", "error", err, "correlation_id", correlationID)
		respondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.Logger.Info("user created", "id", user.ID, "email", user.Email, "correlation_id", correlationID)
	h.publish(c.Request.Context(), models.NewUserCreated(user.ID, user.Email, h.Source))
	c.JSON(http.StatusCreated, user)
}

// UpdateUser godoc
// @Summary      Update an existing user
// @Description  Replaces a user's fields. No event is published.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id       path      int                       true  "User ID"
// @Param        request  body      models.UpdateUserRequest  true  "Update user request"
// @Success      200      {object}  models.User
// @Failure      400      {object}  models.ErrorResponse
// @Failure      404      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Failure      500      {object}  models.ErrorResponse
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user models.User
	err := h.DB.QueryRowContext(c.Request.Context(),
		"UPDATE users SET name = $1, email = $2, age = $3 WHERE id = $4 RETURNING id, name, email, age, created_at",
		req.Name, req.Email, *req.Age, id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Age, &user.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		respondError(c, http.StatusNotFound, "user not found")
		return
	case isUniqueViolation(err):
		respondError(c, http.StatusConflict, "user with email "+req.Email+" already exists")
		return
	case err != nil:
		h.Logger.Error("failed to update user", "id", id, "error", err, "correlation_id", middleware.GetCorrelationID(c))
		respondError(c, http.StatusInternalServerError, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUser godoc
// @Summary      Get a user by ID
// @Description  Returns a single user
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var user models.User
	err := h.DB.QueryRowContext(c.Request.Context(),
		"SELECT id, name, email, age, created_at FROM users WHERE id = $1", id,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Age, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers godoc
// @Summary      List all users
// @Description  Returns all users
// @Tags         users
// @Produce      json
// @Success      200  {array}   models.User
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	rows, err := h.DB.QueryContext(c.Request.Context(), "SELECT id, name, email, age, created_at FROM users ORDER BY id")
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to fetch users")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.CreatedAt); err != nil {
			h.Logger.Error("failed to scan user row", "error", err)
			respondError(c, http.StatusInternalServerError, "failed to fetch users")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("failed to iterate users", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, users)
}

// DeleteUser godoc
// @Summary      Delete a user
// @Description  Deletes a user and publishes a USER_DELETED event
// @Tags         users
// @Param        id   path  int  true  "User ID"
// @Success      204
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	id, ok := parseID(c)
	if !ok {
		return
	}

	email, err := h.deleteUser(c.Request.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.Logger.Error("failed to delete user", "id", id, "error", err, "correlation_id", correlationID)
		respondError(c, http.StatusInternalServerError, "failed to delete user")
		return
	}

	h.Logger.Info("user deleted", "id", id, "email", email, "correlation_id", correlationID)
	h.publish(c.Request.Context(), models.NewUserDeleted(id, email, h.Source))
	c.Status(http.StatusNoContent)
}

// deleteUser removes the row and returns the email it had, so the event can
// address the user after the row is gone.
func (h *UserHandler) deleteUser(ctx context.Context, id int64) (string, error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var email string
	if err := tx.QueryRowContext(ctx, "SELECT email FROM users WHERE id = $1 FOR UPDATE", id).Scan(&email); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id); err != nil {
		return "", err
	}
	return email, tx.Commit()
}

// publish hands the event to the producer and logs the confirmation when it
// arrives. The HTTP response never waits on it.
func (h *UserHandler) publish(ctx context.Context, event models.LifecycleEvent) {
	handle := h.Publisher.Publish(ctx, event)
	correlationID := middleware.CorrelationIDFromContext(ctx)
	go func() {
		<-handle.Done()
		res := handle.Result()
		if res.Err != nil {
			h.Logger.Error("lifecycle event not delivered",
				"event_id", event.EventID, "type", event.EventType, "error", res.Err, "correlation_id", correlationID)
			return
		}
		h.Logger.Debug("lifecycle event delivered",
			"event_id", event.EventID, "partition", res.Delivery.Partition, "offset", res.Delivery.Offset)
	}()
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "invalid user id "+strconv.Quote(c.Param("id")))
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.NewErrorResponse(status, message, c.Request.URL.Path))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
