package rpc

import (
	"encoding/json"
	"fmt"
)

// parseParams decodes raw into dst, reporting a spec.md §4.I/§7
// `` missing `k` `` style error when raw is absent or malformed. Individual
// required-field checks are left to each handler via requireString, since
// "missing" here means the whole params object failed to parse, not that
// one field inside it was absent.
func parseParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing `params`")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("missing `params`")
	}
	return nil
}

func requireString(v, field string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("missing `%s`", field)
	}
	return v, nil
}
