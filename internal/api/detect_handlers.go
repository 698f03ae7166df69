package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doorwatch/doorwatch/internal/pipeline"
)

// defaultConfidence matches yolo_detection_service_enhanced.py's
// ConfidenceThreshold default (Field(default=0.25, ge=0.1, le=1.0)),
// used whenever a caller omits or zeroes out the confidence field.
const defaultConfidence = 0.25

// detectRequest mirrors spec.md §6's POST /detect body. image_data may be
// raw base64 or a data:image/...;base64,... URL, matching the Python
// prototype's decode_image helper.
type detectRequest struct {
	ImageData      string   `json:"image_data"`
	Confidence     float64  `json:"confidence"`
	SuspiciousConf *float64 `json:"suspicious_conf,omitempty"`
	ThreatConf     *float64 `json:"threat_conf,omitempty"`
	SuspiciousIoU  *float64 `json:"suspicious_iou,omitempty"`
	ThreatIoU      *float64 `json:"threat_iou,omitempty"`
	LLMEnabled     *bool    `json:"llm_enabled,omitempty"`
	StreamID       string   `json:"stream_id,omitempty"`
}

// decodeImageData strips an optional data-URL prefix and base64-decodes
// the remainder; an InputDecodeError (spec.md §7) surfaces as a plain Go
// error here and is mapped to the 500 response by the caller.
func decodeImageData(raw string) ([]byte, error) {
	if idx := strings.Index(raw, ","); idx != -1 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	return base64.StdEncoding.DecodeString(raw)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusInternalServerError, "Detection failed: invalid request body")
		return
	}

	if req.Confidence <= 0 {
		req.Confidence = defaultConfidence
	}

	frame, err := decodeImageData(req.ImageData)
	if err != nil {
		// InputDecodeError: occupancy state is untouched because
		// nothing downstream of this point has run yet (spec.md §7).
		respondError(w, http.StatusInternalServerError, "Detection failed: "+err.Error())
		return
	}

	resp, err := s.Pipeline.Process(r.Context(), pipeline.Request{
		StreamID:       req.StreamID,
		Frame:          frame,
		Confidence:     req.Confidence,
		SuspiciousConf: req.SuspiciousConf,
		ThreatConf:     req.ThreatConf,
		SuspiciousIoU:  req.SuspiciousIoU,
		ThreatIoU:      req.ThreatIoU,
		LLMEnabled:     req.LLMEnabled,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Detection failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, detectResponseFromPipeline(resp))
}

// detectResponseFromPipeline assembles the wire body field-for-field
// against spec.md §6's /detect response table. threats/has_threat are
// omitted entirely (nil slice / nil pointer) when the secondary model
// isn't loaded, matching SecondaryModelMissing's documented behavior.
func detectResponseFromPipeline(resp pipeline.Response) map[string]any {
	detections := make([]wireDetection, 0, len(resp.Detections))
	for _, d := range resp.Detections {
		detections = append(detections, toWireDetection(d))
	}

	out := map[string]any{
		"people_count":      resp.PeopleCount,
		"detections":        detections,
		"processing_time":   resp.ProcessingTimeMs,
		"image_width":       resp.ImageWidth,
		"image_height":      resp.ImageHeight,
		"entry_count":       resp.EntryCount,
		"exit_count":        resp.ExitCount,
		"current_occupancy": resp.CurrentOccupancy,
	}

	if resp.Threats != nil {
		threats := make([]wireDetection, 0, len(resp.Threats))
		for _, b := range resp.Threats {
			threats = append(threats, toWireThreat(b))
		}
		out["threats"] = threats
	}
	if resp.HasThreat != nil {
		out["has_threat"] = *resp.HasThreat
	}
	if resp.LLMIsFalsePositive != nil {
		out["llm_is_false_positive"] = *resp.LLMIsFalsePositive
	}
	if resp.LLMConfidence != nil {
		out["llm_confidence"] = *resp.LLMConfidence
	}
	if resp.LLMReason != "" {
		out["llm_reason"] = resp.LLMReason
	}
	if resp.LLMModel != "" {
		out["llm_model"] = resp.LLMModel
	}
	if resp.LLMTriggered != nil {
		out["llm_triggered"] = *resp.LLMTriggered
	}
	if resp.LLMError != "" {
		out["llm_error"] = resp.LLMError
	}

	return out
}
