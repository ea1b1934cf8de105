package depot

import (
	"fmt"
	"os"
	"strings"
)

const (
	envAPIURL = "DEPOT_API_URL"
	envAPIKey = "DEPOT_API_KEY"
	envBucket = "DEPOT_BUCKET"
)

// NewFromEnv initialises a Client from the environment variables exposed to
// Depot workloads. DEPOT_BUCKET is optional; when present the bucket is
// preselected.
func NewFromEnv(opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(os.Getenv(envAPIURL))
	if baseURL == "" {
		return nil, fmt.Errorf("depot: %s is required", envAPIURL)
	}
	apiKey := strings.TrimSpace(os.Getenv(envAPIKey))
	if apiKey == "" {
		return nil, fmt.Errorf("depot: %s is required", envAPIKey)
	}

	client, err := New(baseURL, apiKey, opts...)
	if err != nil {
		return nil, err
	}
	if bucket := strings.TrimSpace(os.Getenv(envBucket)); bucket != "" {
		client.SetBucket(bucket)
	}
	return client, nil
}
