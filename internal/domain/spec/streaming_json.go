package spec

import "encoding/json"

// UnmarshalJSON accepts a bare bool ("streaming supported", fields left
// zero) or a structured object, mirroring the original spec bundle's loose
// schema for this field.
func (s *StreamingIndicator) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*s = StreamingIndicator{}
		return nil
	}

	var obj struct {
		ContentType string          `json:"content_type"`
		Indicator   *StreamingCheck `json:"indicator"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.ContentType = obj.ContentType
	s.Indicator = obj.Indicator
	return nil
}
