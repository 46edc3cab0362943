package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/app"
	"github.com/shrimpsizemoose/allotter/internal/models"
	"github.com/shrimpsizemoose/allotter/internal/store"
)

type AllotmentHandler struct {
	service *app.Service
}

func NewAllotmentHandler(service *app.Service) *AllotmentHandler {
	return &AllotmentHandler{
		service: service,
	}
}

func (h *AllotmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	allotments, err := h.service.ListAllotments(r.Context(), teacherEmail(r))
	if err != nil {
		logger.Error.Printf("Failed to list allotments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch allotments"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": allotments,
	})
}

func (h *AllotmentHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Sync(r.Context())
	if err != nil {
		logger.Error.Printf("Sync failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if res.Count == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No data found in sheet"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Sync successful",
		"count":          res.Count,
		"mappedSheet":    res.SheetTitle,
		"headerRow":      res.HeaderRow,
		"mapping":        res.Mapping,
		"matches":        res.Matches,
		"keywordVersion": res.KeywordVersion,
	})
}

type updateBody struct {
	ID                      *int64  `json:"id"`
	VideoLink               *string `json:"videoLink"`
	QuestionErrorIdentified *string `json:"questionErrorIdentified"`
	Status                  string  `json:"status"`
}

func (h *AllotmentHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	if body.ID == nil || *body.ID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Missing ID"})
		return
	}

	res, err := h.service.UpdateAllotment(r.Context(), teacherEmail(r), models.UpdateRequest{
		ID:                      *body.ID,
		VideoLink:               body.VideoLink,
		QuestionErrorIdentified: body.QuestionErrorIdentified,
		Status:                  body.Status,
	})

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": validationMessage(verrs)})
		return
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Allotment not found or unauthorized"})
		return
	case err != nil:
		logger.Error.Printf("Update failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update allotment"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Updated successfully",
		"data":      res.Allotment,
		"writeBack": res.WriteBack,
	})
}

func validationMessage(verrs validator.ValidationErrors) string {
	if len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: failed %s", fe.Field(), fe.Tag())
}

func (h *AllotmentHandler) HandleDebugSheet(w http.ResponseWriter, r *http.Request) {
	title, headers, err := h.service.PreviewHeaders(r.Context())
	if err != nil {
		logger.Error.Printf("Debug sheet failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	indices := make([]string, len(headers))
	for i, header := range headers {
		indices[i] = fmt.Sprintf("%d: %s", i, header)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sheet":   title,
		"headers": headers,
		"indices": indices,
	})
}

func (h *AllotmentHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		logger.Error.Printf("Database ping failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "error": "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
