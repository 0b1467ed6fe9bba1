package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"telemetry-broker/internal/hub"
	"telemetry-broker/internal/ingest"
)

const RecordIDHeader = "X-Record-Id"

type IngestHandler struct {
	Pipeline *ingest.Pipeline
	Hub      *hub.Hub
	Logger   *zap.Logger
	// MaxPayloadBytes caps the request body; zero means no limit.
	MaxPayloadBytes int64
}

// recordEvent is pushed to feed subscribers for every admitted record.
type recordEvent struct {
	Type     string `json:"type"`
	SourceID string `json:"sourceId"`
	RecordID int64  `json:"recordId"`
	Size     int    `json:"size"`
}

// Add admits the request body as one record. The response body is the
// payload size in bytes; the assigned record id is sent in X-Record-Id.
func (h *IngestHandler) Add(c *gin.Context) {
	if h.MaxPayloadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxPayloadBytes)
	}
	payload, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "A payload reached size limit.")
			return
		}
		c.String(http.StatusBadRequest, "Failed to read request body")
		return
	}

	header := ingest.HeaderFrom(c.Request.Header)
	id, err := h.Pipeline.Admit(c.Request.Context(), c.Request.RemoteAddr, header, payload)
	if err != nil {
		var ae *ingest.AdmissionError
		if errors.As(err, &ae) {
			c.String(ae.Kind.Status(), ae.Error())
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.Header(RecordIDHeader, strconv.FormatInt(id, 10))
	c.String(http.StatusOK, strconv.Itoa(len(payload)))

	if h.Hub != nil {
		h.publish(header.Value, id, len(payload))
	}
}

func (h *IngestHandler) publish(sourceID string, id int64, size int) {
	out, err := json.Marshal(recordEvent{Type: "record", SourceID: sourceID, RecordID: id, Size: size})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("failed to encode record event", zap.Error(err))
		}
		return
	}
	h.Hub.Broadcast(sourceID, out)
}
