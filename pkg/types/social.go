package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Social holds optional social profile links persisted as JSONB.
type Social struct {
	Facebook  *string `json:"facebook,omitempty"`
	Instagram *string `json:"instagram,omitempty"`
	Telegram  *string `json:"telegram,omitempty"`
	TikTok    *string `json:"tiktok,omitempty"`
	YouTube   *string `json:"youtube,omitempty"`
}

func (s Social) Value() (driver.Value, error) {
	return marshalJSONB(s)
}

func (s *Social) Scan(value interface{}) error {
	if value == nil {
		*s = Social{}
		return nil
	}
	return unmarshalJSONB("social", value, s)
}

// IsEmpty reports whether no link is set.
func (s Social) IsEmpty() bool {
	return s.Facebook == nil && s.Instagram == nil && s.Telegram == nil && s.TikTok == nil && s.YouTube == nil
}

func marshalJSONB(v any) (driver.Value, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

func unmarshalJSONB(name string, value interface{}, dest any) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%s: unsupported scan type %T", name, value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
