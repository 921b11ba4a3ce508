package spec

import (
	"encoding/json"
	"fmt"
)

// FlexInt unmarshals a JSON number that may be serialized as either an
// integer or a float (e.g. some upstream spec publishers emit context
// windows as "8192.0"); it always yields an int.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var asFloat float64
	if err := json.Unmarshal(data, &asFloat); err != nil {
		return fmt.Errorf("spec: expected numeric token limit, got %s: %w", data, err)
	}
	*f = FlexInt(int(asFloat))
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}
