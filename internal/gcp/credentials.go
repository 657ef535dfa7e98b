// Package gcp builds the client options shared by the Google Cloud adapters.
package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions turns credentials, either inline JSON or a file path, into
// client options. Empty credentials fall back to GOOGLE_APPLICATION_CREDENTIALS_JSON
// and then to application default credentials.
func ClientOptions(credentials string) []option.ClientOption {
	creds := strings.TrimSpace(credentials)
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	}

	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}
