package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

var (
	collectRequestFile string
	collectSourceType  string
	collectDatabase    string
	collectStats       bool
	collectParallel    bool
	collectTimeout     int
	collectWatch       time.Duration
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one metadata collection in the foreground",
	Long: `Runs a collection synchronously and prints ledger progress while it runs.

Credentials come from a YAML or JSON request file (--request), with
SNOWFLAKE_ACCOUNT, SNOWFLAKE_USER and SNOWFLAKE_PASSWORD as fallbacks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildCollectRequest()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		processID := uuid.NewString()
		fmt.Fprintf(os.Stderr, "process %s\n", processID)

		done := make(chan struct{})
		go watchProgress(a, processID, done)

		status, err := a.collection.RunCollection(ctx, processID, req)
		close(done)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if status.Status == models.StatusError {
			return fmt.Errorf("collection failed: %s", status.Message)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectRequestFile, "request", "", "YAML or JSON file holding a collection request")
	collectCmd.Flags().StringVar(&collectSourceType, "source", "", "source type (snowflake, sqlserver, glue)")
	collectCmd.Flags().StringVar(&collectDatabase, "database", "", "collect a single database")
	collectCmd.Flags().BoolVar(&collectStats, "stats", false, "collect column statistics")
	collectCmd.Flags().BoolVar(&collectParallel, "parallel", false, "walk databases in parallel")
	collectCmd.Flags().IntVar(&collectTimeout, "timeout", 0, "metadata time budget in seconds (0 uses the configured default)")
	collectCmd.Flags().DurationVar(&collectWatch, "watch-interval", 2*time.Second, "how often progress is printed")
	rootCmd.AddCommand(collectCmd)
}

// buildCollectRequest reads the request file (YAML is a superset of JSON)
// and applies flag overrides.
func buildCollectRequest() (models.CollectionRequest, error) {
	var req models.CollectionRequest
	if collectRequestFile != "" {
		data, err := os.ReadFile(collectRequestFile)
		if err != nil {
			return req, fmt.Errorf("reading request file: %w", err)
		}
		// yaml.v3 honours yaml tags only, so decode through JSON field names.
		var generic map[string]any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return req, fmt.Errorf("parsing request file: %w", err)
		}
		raw, err := json.Marshal(generic)
		if err != nil {
			return req, fmt.Errorf("parsing request file: %w", err)
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, fmt.Errorf("parsing request file: %w", err)
		}
	}

	if req.Account == "" {
		req.Account = os.Getenv("SNOWFLAKE_ACCOUNT")
	}
	if req.Username == "" {
		req.Username = os.Getenv("SNOWFLAKE_USER")
	}
	if req.Password == "" {
		req.Password = os.Getenv("SNOWFLAKE_PASSWORD")
	}
	if collectSourceType != "" {
		req.SourceType = collectSourceType
	}
	if collectDatabase != "" {
		req.Database = collectDatabase
	}
	if collectStats {
		req.CollectStatistics = true
	}
	if collectParallel {
		req.ParallelDatabases = true
	}
	if collectTimeout > 0 {
		req.MetadataTimeout = &collectTimeout
	}
	return req, nil
}

func watchProgress(a *app, processID string, done <-chan struct{}) {
	ticker := time.NewTicker(collectWatch)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			status, err := a.ledger.Read(context.Background(), processID)
			if err != nil || status.Status == models.StatusNotFound {
				continue
			}
			line := fmt.Sprintf("%3d%% %-22s %s", status.Progress, status.Phase, status.Message)
			if line != last {
				fmt.Fprintln(os.Stderr, line)
				last = line
			}
		}
	}
}
