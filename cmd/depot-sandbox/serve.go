package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DepotHQ/depot_sdk_go/pkg/depot/mock"
)

// seedEntry describes one object preloaded into the sandbox service.
type seedEntry struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	Text        string `json:"text,omitempty"`
	Base64      string `json:"base64,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

func newServeCmd() *cobra.Command {
	var (
		addr        string
		apiKeys     []string
		seedPath    string
		latency     time.Duration
		fail        string
		expireAfter int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the in-memory Depot service",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if len(apiKeys) == 0 {
				apiKeys = []string{"key-sandbox-1"}
			}

			svc := mock.New(apiKeys...)
			svc.Latency = latency
			svc.ExpireAfter = expireAfter

			if fail != "" {
				rate, code, err := parseFailConfig(fail)
				if err != nil {
					return err
				}
				svc.FailRate = rate
				svc.FailCode = code
			}

			if seedPath != "" {
				if err := applySeed(svc, seedPath); err != nil {
					return err
				}
			}

			host := addr
			if strings.HasPrefix(host, ":") {
				host = "localhost" + host
			}
			slog.Info("depot-sandbox listening", slog.String("addr", addr))
			fmt.Println()
			fmt.Printf("export DEPOT_API_URL=http://%s\n", host)
			fmt.Printf("export DEPOT_API_KEY=%s\n", apiKeys[0])
			fmt.Println()

			server := &http.Server{
				Addr:    addr,
				Handler: svc,
			}
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8787", "listen address")
	cmd.Flags().StringArrayVar(&apiKeys, "api-key", nil, "accepted API key (repeatable)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "path to JSON seed file")
	cmd.Flags().DurationVar(&latency, "latency", 0, "artificial latency to inject per request")
	cmd.Flags().StringVar(&fail, "fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	cmd.Flags().IntVar(&expireAfter, "expire-after", 0, "expire sessions after this many file requests")
	return cmd
}

func applySeed(svc *mock.Server, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	var entries []seedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, e := range entries {
		if e.Bucket == "" || e.Path == "" {
			return fmt.Errorf("seed entry %d: bucket and path are required", i)
		}
		payload := []byte(e.Text)
		if e.Base64 != "" {
			payload, err = base64.StdEncoding.DecodeString(e.Base64)
			if err != nil {
				return fmt.Errorf("seed entry %d: decode base64: %w", i, err)
			}
		}
		svc.Seed(e.Bucket, e.Path, payload, e.ContentType)
	}
	slog.Info("seed applied", slog.Int("objects", len(entries)))
	return nil
}

func parseFailConfig(raw string) (rate float64, code int, err error) {
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return 0, 0, fmt.Errorf("invalid fail config segment %q", part)
		}
		switch key {
		case "rate":
			rate, err = strconv.ParseFloat(value, 64)
			if err != nil || rate < 0 || rate > 1 {
				return 0, 0, fmt.Errorf("invalid fail rate %q", value)
			}
		case "code":
			code, err = strconv.Atoi(value)
			if err != nil || code < 400 || code > 599 {
				return 0, 0, fmt.Errorf("invalid fail code %q", value)
			}
		default:
			return 0, 0, fmt.Errorf("unknown fail config key %q", key)
		}
	}
	return rate, code, nil
}
