// Package config loads the feed service configuration: the credential file
// mapping caller key ids to shared secrets, plus environment defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uktrade/directory-api-sub000/internal/macauth"
)

// CredentialEntry is one caller identity in the credential file.
type CredentialEntry struct {
	KeyID  string `yaml:"keyId"`
	Secret string `yaml:"secret"`
}

// File is the YAML credential file layout:
//
//	credentials:
//	  - keyId: aggregator
//	    secret: some-long-shared-secret
type File struct {
	Credentials []CredentialEntry `yaml:"credentials"`
}

// LoadCredentials reads and parses the YAML credential file at path.
// Every entry must carry both a key id and a secret.
func LoadCredentials(path string) ([]macauth.Credential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %s: %w", path, err)
	}
	if len(file.Credentials) == 0 {
		return nil, fmt.Errorf("credential file %s contains no credentials", path)
	}
	creds := make([]macauth.Credential, 0, len(file.Credentials))
	for i, entry := range file.Credentials {
		if entry.KeyID == "" || entry.Secret == "" {
			return nil, fmt.Errorf("credential entry %d is missing keyId or secret", i)
		}
		creds = append(creds, macauth.Credential{KeyID: entry.KeyID, Secret: []byte(entry.Secret)})
	}
	slog.Debug("LoadCredentials: credential file loaded", "path", path, "count", len(creds))
	return creds, nil
}
