package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credentials hold the portal login pair, read once at session
// construction. Fields missing from the file stay empty and are passed
// through to the login step unchanged; the portal rejects them itself.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoadCredentials reads a portal credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	return &creds, nil
}
