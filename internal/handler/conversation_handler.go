package handler

import (
	"net/http"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListConversations returns chatbot sessions without their transcripts
func ListConversations(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	q := database.GetDB().Omit("messages").Where("business_id = ?", businessID)
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var conversations []model.Conversation
	if err := q.Order("last_message_at DESC, id DESC").Find(&conversations).Error; err != nil {
		log.Error("Failed to list conversations", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": conversations})
}

func GetConversation(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var conv model.Conversation
	if err := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).First(&conv).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
	}

	msgs, err := chatbot.DecodeTranscript(conv.Messages)
	if err != nil {
		log.Warn("Discarding unreadable transcript", zap.Uint("conversation_id", conv.ID), zap.Error(err))
		msgs = []chatbot.ChatMessage{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"conversation": conv,
		"messages":     msgs,
	})
}

func CloseConversation(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("conversation", "close")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	res := database.GetDB().Model(&model.Conversation{}).
		Where("id = ? AND business_id = ?", id, businessID).
		Update("status", model.ConversationClosed)
	if res.Error != nil {
		log.Error("Failed to close conversation", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": model.ConversationClosed})
}

func DeleteConversation(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("conversation", "delete")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	res := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).Delete(&model.Conversation{})
	if res.Error != nil {
		log.Error("Failed to delete conversation", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
