package config

// KeySpec describes a named key profile declared in the config file
type KeySpec struct {
	Name     string `json:"name"`
	Source   string `json:"source"`   // raw, hex, base64, passphrase
	Material string `json:"material"` // interpreted according to Source
}

// ParseKeyList parses a raw keys list from the config into KeySpec values.
// Entries without a name are skipped.
func ParseKeyList(raw interface{}) []KeySpec {
	var result []KeySpec

	list, ok := raw.([]interface{})
	if !ok {
		return result
	}

	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		spec := KeySpec{
			Name:     getStringField(m, "name"),
			Source:   getStringField(m, "source"),
			Material: getStringField(m, "material"),
		}
		if spec.Name == "" {
			continue
		}
		result = append(result, spec)
	}

	return result
}

func getStringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
