package matrix

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON renders the matrix mirror with distros, collections and
// branches in declaration order.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"distro_defaults":`)
	if err := writeJSON(&buf, m.Defaults); err != nil {
		return nil, err
	}

	buf.WriteString(`,"distros":{`)
	for i, d := range m.Distros {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, d.Name); err != nil {
			return nil, err
		}
		if err := writeJSON(&buf, d); err != nil {
			return nil, err
		}
	}

	buf.WriteString(`},"collections":{`)
	for i, c := range m.Collections {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c.Name); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		if c.Description != "" {
			buf.WriteString(`"description":`)
			if err := writeJSON(&buf, c.Description); err != nil {
				return nil, err
			}
			buf.WriteByte(',')
		}
		buf.WriteString(`"branches":`)
		if err := writeJSON(&buf, c.Branches); err != nil {
			return nil, err
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// MarshalJSON renders the branch set as an ordered mapping.
func (s BranchSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, b.Name); err != nil {
			return nil, err
		}
		if err := writeJSON(&buf, b); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	if err := writeJSON(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return nil
}

// writeJSON appends v without HTML escaping or the encoder's newline.
func writeJSON(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}
