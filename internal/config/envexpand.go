package config

import "os"

// expandEnv expands ${VAR}/$VAR references in YAML content before parsing,
// identical in spirit to the teacher's pkg/config/envexpand.go ExpandEnv.
// Missing variables expand to empty string; validation catches required
// fields left empty.
func expandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
