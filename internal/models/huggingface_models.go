package models

import (
	"encoding/json"
	"fmt"
)

type HFClassificationRequest struct {
	Inputs  string           `json:"inputs"`
	Options HFRequestOptions `json:"options"`
}

type HFRequestOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type HFLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HFClassificationResponse accepts both the nested `[[{...}]]` shape the
// Inference API returns for a single input and a flat `[{...}]` list.
type HFClassificationResponse []HFLabelScore

func (r *HFClassificationResponse) UnmarshalJSON(data []byte) error {
	var nested [][]HFLabelScore
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) > 0 {
			*r = nested[0]
		} else {
			*r = nil
		}
		return nil
	}

	var flat []HFLabelScore
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("unexpected classification payload: %w", err)
	}
	*r = flat
	return nil
}

// Top returns the highest scoring label.
func (r HFClassificationResponse) Top() (HFLabelScore, bool) {
	if len(r) == 0 {
		return HFLabelScore{}, false
	}
	best := r[0]
	for _, l := range r[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

type HFErrorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}
