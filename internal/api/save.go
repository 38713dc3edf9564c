package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/juank/cpa-dashboard/backend/internal/models"
	"github.com/juank/cpa-dashboard/backend/internal/processor/common"
	"go.uber.org/zap"
)

// ErrInvalidPayload is the input-shape failure of the save endpoint.
var ErrInvalidPayload = errors.New("Invalid payload")

// DecodeClients maps a JSON array of output rows onto stored clients. Any
// body that is not an array of objects with a USER ID is an invalid payload.
func DecodeClients(body []byte) ([]models.Client, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, ErrInvalidPayload
	}
	items, ok := payload.([]any)
	if !ok {
		return nil, ErrInvalidPayload
	}

	clients := make([]models.Client, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: row %d is not an object", ErrInvalidPayload, i)
		}
		c, err := common.ClientFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidPayload, i, err)
		}
		clients = append(clients, c)
	}
	return clients, nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r, s.MaxUploadBytes)
	if err != nil {
		JSONError(w, http.StatusBadRequest, ErrInvalidPayload.Error())
		return
	}

	clients, err := DecodeClients(body)
	if err != nil {
		JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.DB.UpsertClients(r.Context(), clients); err != nil {
		s.Logger.Error("Upsert failed", zap.Int("rows", len(clients)), zap.Error(err))
		JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	JSONResponse(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"upserted": len(clients),
	})
}
