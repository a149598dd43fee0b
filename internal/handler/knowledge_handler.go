package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/chatbot"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/knowledge"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func ListKnowledge(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)

	defer prometheus.TrackDBOperation("query")(time.Now())
	q := database.GetDB().Where("business_id = ?", businessID)
	if category := c.QueryParam("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if active := c.QueryParam("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "active must be true or false"})
		}
		q = q.Where("active = ?", v)
	}

	var entries []model.KnowledgeBase
	if err := q.Order("id").Find(&entries).Error; err != nil {
		log.Error("Failed to list knowledge base", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

func GetKnowledge(c echo.Context) error {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var entry model.KnowledgeBase
	if err := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).First(&entry).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
	}
	return c.JSON(http.StatusOK, entry)
}

func CreateKnowledge(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("knowledge", "create")

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
		Active   *bool  `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and content are required"})
	}

	entry := model.KnowledgeBase{
		BusinessID: businessID,
		Title:      req.Title,
		Content:    req.Content,
		Category:   strings.TrimSpace(req.Category),
		Source:     model.KnowledgeManual,
		Active:     true,
	}

	db := database.GetDB()
	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := db.Create(&entry).Error; err != nil {
		log.Error("Failed to create knowledge entry", zap.Error(err))
		return internalError(c)
	}
	if req.Active != nil && !*req.Active {
		if err := db.Model(&entry).Update("active", false).Error; err != nil {
			log.Error("Failed to deactivate knowledge entry", zap.Error(err))
			return internalError(c)
		}
		entry.Active = false
	}

	chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	return c.JSON(http.StatusCreated, entry)
}

func UpdateKnowledge(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("knowledge", "update")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		Category *string `json:"category"`
		Active   *bool   `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title cannot be empty"})
		}
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "content cannot be empty"})
		}
		updates["content"] = strings.TrimSpace(*req.Content)
	}
	if req.Category != nil {
		updates["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	db := database.GetDB()
	var entry model.KnowledgeBase
	if err := db.Where("id = ? AND business_id = ?", id, businessID).First(&entry).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
	}
	if len(updates) > 0 {
		if err := db.Model(&entry).Updates(updates).Error; err != nil {
			log.Error("Failed to update knowledge entry", zap.Error(err))
			return internalError(c)
		}
		db.First(&entry, entry.ID)
		chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	}
	return c.JSON(http.StatusOK, entry)
}

func DeleteKnowledge(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("knowledge", "delete")
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	res := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).Delete(&model.KnowledgeBase{})
	if res.Error != nil {
		log.Error("Failed to delete knowledge entry", zap.Error(res.Error))
		return internalError(c)
	}
	if res.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "entry not found"})
	}
	chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	return c.NoContent(http.StatusNoContent)
}

// ImportKnowledge turns an uploaded document into knowledge entries
func ImportKnowledge(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("knowledge", "import")

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}
	if fh.Size > knowledge.MaxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": knowledge.ErrTooLarge.Error()})
	}

	f, err := fh.Open()
	if err != nil {
		log.Error("Failed to open upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read upload"})
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, knowledge.MaxUploadSize+1))
	if err != nil {
		log.Error("Failed to read upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read upload"})
	}

	entries, err := knowledge.Import(c.Request().Context(), database.GetDB(), businessID, fh.Filename, c.FormValue("category"), data)
	switch {
	case errors.Is(err, knowledge.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": err.Error()})
	case errors.Is(err, knowledge.ErrUnsupportedType), errors.Is(err, knowledge.ErrNoText),
		errors.Is(err, knowledge.ErrUnreadable):
		log.Warn("Rejected knowledge import", zap.String("filename", fh.Filename), zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case err != nil:
		log.Error("Knowledge import failed", zap.Error(err))
		return internalError(c)
	}

	chatbot.Invalidate(c.Request().Context(), deps.Cache, businessID)
	log.Info("Knowledge imported",
		zap.Uint("business_id", businessID),
		zap.String("filename", fh.Filename),
		zap.Int("entries", len(entries)))
	return c.JSON(http.StatusCreated, echo.Map{"entries": entries, "count": len(entries)})
}
