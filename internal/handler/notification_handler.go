package handler

import (
	"net/http"
	"strconv"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/middleware"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func ListNotifications(c echo.Context) error {
	userID, _ := middleware.GetUserID(c)

	q := database.GetDB().Where("user_id = ?", userID)
	if unread := c.QueryParam("unread"); unread != "" {
		v, err := strconv.ParseBool(unread)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unread must be true or false"})
		}
		if v {
			q = q.Where("read = ?", false)
		}
	}

	var notifications []model.Notification
	if err := q.Order("id DESC").Limit(100).Find(&notifications).Error; err != nil {
		logger.FromContext(c).Error("Failed to list notifications", zap.Error(err))
		return internalError(c)
	}

	var unreadCount int64
	database.GetDB().Model(&model.Notification{}).Where("user_id = ? AND read = ?", userID, false).Count(&unreadCount)

	return c.JSON(http.StatusOK, echo.Map{
		"notifications": notifications,
		"unread":        unreadCount,
	})
}

func MarkNotificationRead(c echo.Context) error {
	userID, _ := middleware.GetUserID(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	res := database.GetDB().Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		logger.FromContext(c).Error("Failed to mark notification read", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "notification not found"})
	}
	return c.NoContent(http.StatusNoContent)
}

func MarkAllNotificationsRead(c echo.Context) error {
	userID, _ := middleware.GetUserID(c)

	res := database.GetDB().Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if res.Error != nil {
		logger.FromContext(c).Error("Failed to mark notifications read", zap.Error(res.Error))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": res.RowsAffected})
}
