package enrich

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/residence-finder/internal/model"
)

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// decodeObject parses text as a JSON object and checks that every required key is present.
func decodeObject(text string, required []string) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleanJSON(text)), &obj); err != nil {
		return nil, eris.Wrapf(ErrSchema, "decode: %v", err)
	}
	for _, k := range required {
		v, ok := obj[k]
		if !ok || string(v) == "null" {
			return nil, eris.Wrapf(ErrSchema, "missing field %q", k)
		}
	}
	return obj, nil
}

// flexInt decodes a JSON number or numeric string. Anything else is 0.
func flexInt(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
	}
	return 0
}

func decodeSummary(text string) (model.Summary, error) {
	obj, err := decodeObject(text, []string{"summary"})
	if err != nil {
		return model.Summary{}, err
	}
	var out model.Summary
	if err := json.Unmarshal(obj["summary"], &out.Summary); err != nil {
		return model.Summary{}, eris.Wrap(ErrSchema, "summary is not a string")
	}
	out.Services = flexInt(obj["services"])
	out.Opinions = flexInt(obj["opinions"])
	return out, nil
}

func decodeDistances(text string) (model.DistancePair, error) {
	obj, err := decodeObject(text, distancesSchema.required())
	if err != nil {
		return model.DistancePair{}, err
	}
	casa1, err := decodeDistance(obj["casa1"])
	if err != nil {
		return model.DistancePair{}, eris.Wrap(err, "casa1")
	}
	casa2, err := decodeDistance(obj["casa2"])
	if err != nil {
		return model.DistancePair{}, eris.Wrap(err, "casa2")
	}
	return model.DistancePair{Casa1: casa1, Casa2: casa2}, nil
}

func decodeDistance(raw json.RawMessage) (model.Distance, error) {
	var d model.Distance
	if err := json.Unmarshal(raw, &d); err != nil {
		return model.Distance{}, eris.Wrapf(ErrSchema, "decode distance: %v", err)
	}
	if d.Distancia == "" || d.Tiempo == "" {
		return model.Distance{}, eris.Wrap(ErrSchema, "distance needs distancia and tiempo")
	}
	return d, nil
}
