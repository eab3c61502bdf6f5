package alarms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-bsm/internal/models"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

type wireAlarm struct {
	ID           string          `json:"id"`
	ReductionKey string          `json:"reductionKey"`
	Severity     json.RawMessage `json:"severity"`
	LastEvent    string          `json:"lastEventTime,omitempty"`
}

// Parse decodes one alarm payload. Severity may be given by name ("MAJOR") or by its
// numeric id (6). Payloads without an id get a random one; lastEventTime, when present,
// is kept as the received time.
func Parse(payload []byte) (models.AlarmEvent, error) {
	var wire wireAlarm
	if err := json.Unmarshal(payload, &wire); err != nil {
		return models.AlarmEvent{}, fmt.Errorf("decode alarm: %w", err)
	}
	key := strings.TrimSpace(wire.ReductionKey)
	if key == "" {
		return models.AlarmEvent{}, errors.New("alarm without reduction key")
	}
	severity, err := parseSeverity(wire.Severity)
	if err != nil {
		return models.AlarmEvent{}, err
	}
	id := strings.TrimSpace(wire.ID)
	if id == "" {
		id = uuid.NewString()
	}
	received := time.Now().UTC()
	if wire.LastEvent != "" {
		received, err = utils.ParseRFC3339(wire.LastEvent)
		if err != nil {
			return models.AlarmEvent{}, fmt.Errorf("alarm %s: %w", id, err)
		}
	}
	return models.AlarmEvent{
		ID:           id,
		ReductionKey: key,
		Severity:     severity,
		ReceivedAt:   received,
	}, nil
}

func parseSeverity(raw json.RawMessage) (models.Severity, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("alarm without severity")
	}
	var name string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &name); err != nil {
			return 0, fmt.Errorf("decode severity: %w", err)
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("decode severity: %w", err)
		}
		name = n.String()
	}
	return models.ParseSeverity(name)
}
