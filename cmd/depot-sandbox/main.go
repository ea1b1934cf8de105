// Command depot-sandbox runs an in-memory Depot service and provides client
// verbs (login, get, put) for exercising the SDK against it or against a
// real deployment.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DepotHQ/depot_sdk_go/pkg/depot"
)

var (
	flagConfigPath string
	flagBaseURL    string
	flagAPIKey     string
	flagBucket     string
	flagVerbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "depot-sandbox",
		Short:         "Depot sandbox service and client harness",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if flagVerbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "TOML config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "url", "", "service base URL")
	cmd.PersistentFlags().StringVar(&flagAPIKey, "key", "", "API key")
	cmd.PersistentFlags().StringVar(&flagBucket, "bucket", "", "bucket name")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	return cmd
}

// newClient builds a logged-in, bucket-selected client from config + flags.
func newClient(needBucket bool) (*depot.Client, error) {
	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.merge(flagBaseURL, flagAPIKey, flagBucket)

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("service base URL is required (--url or config base_url)")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required (--key or config api_key)")
	}
	if needBucket && cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required (--bucket or config bucket)")
	}

	opts := []depot.Option{depot.WithLogger(slog.Default())}
	if timeout, err := cfg.timeout(); err != nil {
		return nil, err
	} else if timeout > 0 {
		opts = append(opts, depot.WithTimeout(timeout))
	}

	client, err := depot.New(cfg.BaseURL, cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Bucket != "" {
		client.SetBucket(cfg.Bucket)
	}
	return client, nil
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Exchange the API key for a session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(false)
			if err != nil {
				return err
			}
			token, err := client.Login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println("session token:", token)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Download an object from the selected bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(true)
			if err != nil {
				return err
			}
			if _, err := client.Login(cmd.Context()); err != nil {
				return err
			}

			out, err := client.FetchFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data := out.Bytes()
			if output == "" || output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write payload to file instead of stdout")
	return cmd
}

func newPutCmd() *cobra.Command {
	var (
		refs       []string
		htmls      []string
		mimeType   string
		detect     bool
		requestURL bool
	)

	cmd := &cobra.Command{
		Use:   "put <path> [files...]",
		Short: "Upload content items to an object in the selected bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]depot.ContentItem, 0, len(args)-1+len(refs)+len(htmls))
			for _, f := range args[1:] {
				items = append(items, depot.FileItem(f))
			}
			for _, r := range refs {
				items = append(items, depot.PathItem(r))
			}
			for _, h := range htmls {
				items = append(items, depot.HTMLItem(h))
			}
			if len(items) == 0 {
				return fmt.Errorf("at least one file, --ref, or --html item is required")
			}

			client, err := newClient(true)
			if err != nil {
				return err
			}
			if _, err := client.Login(cmd.Context()); err != nil {
				return err
			}

			out, err := client.UploadContent(cmd.Context(), args[0], items, &depot.UploadOptions{
				ContentType:       mimeType,
				DetectContentType: detect,
				RequestURL:        requestURL,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out.Body)
		},
	}

	cmd.Flags().StringArrayVar(&refs, "ref", nil, "server-side path reference item (repeatable)")
	cmd.Flags().StringArrayVar(&htmls, "html", nil, "inline HTML item (repeatable)")
	cmd.Flags().StringVar(&mimeType, "mime", "", "declared MIME type for the stored object")
	cmd.Flags().BoolVar(&detect, "detect", false, "detect MIME type from the first file item")
	cmd.Flags().BoolVar(&requestURL, "request-url", false, "ask the service to return a public URL")
	return cmd
}
