package event

import "encoding/json"

// MarshalJSON flattens MessageContent to either a bare string or the
// embedded RedactionInfo object, matching the original's untagged enum.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch {
	case c.Redacted != nil:
		return json.Marshal(c.Redacted)
	case c.Text != nil:
		return json.Marshal(*c.Text)
	default:
		return json.Marshal("")
	}
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = &s
		c.Redacted = nil
		return nil
	}
	var r RedactionInfo
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	c.Redacted = &r
	c.Text = nil
	return nil
}

// MarshalJSON flattens ToolArguments to a string, object, or RedactionInfo.
func (a ToolArguments) MarshalJSON() ([]byte, error) {
	switch {
	case a.Redacted != nil:
		return json.Marshal(a.Redacted)
	case a.Parsed != nil:
		return json.Marshal(a.Parsed)
	default:
		return json.Marshal(a.Raw)
	}
}

func (a *ToolArguments) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Raw = s
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err == nil {
		a.Parsed = m
		return nil
	}
	var r RedactionInfo
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	a.Redacted = &r
	return nil
}
