package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	var (
		redisAddr   string
		redisPrefix string
	)

	cmd := &cobra.Command{
		Use:   "report [jq-expression]",
		Short: "Query a running engine's externally mirrored counters",
		Long: `Report reads the counter snapshot a "breathectl run --redis ..."
process last committed, and optionally filters it with a jq expression.

  breathectl report --redis localhost:6379
  breathectl report --redis localhost:6379 '.engine.breaths'
  breathectl report --redis localhost:6379 '.link | to_entries | map(.value.txdrop)'

With no expression, the full snapshot is printed as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setLogLevel()
			if redisAddr == "" {
				return fmt.Errorf("breathectl: --redis is required")
			}

			snapshot, err := fetchSnapshot(redisAddr, redisPrefix)
			if err != nil {
				return fmt.Errorf("breathectl: %w", err)
			}

			if len(args) == 0 {
				out, err := json.MarshalIndent(snapshot, "", "  ")
				if err != nil {
					return fmt.Errorf("breathectl: marshal snapshot: %w", err)
				}
				fmt.Println(string(out))
				return nil
			}

			return runJQ(args[0], snapshot)
		},
	}

	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address the engine mirrors counters to")
	cmd.Flags().StringVar(&redisPrefix, "redis-prefix", "", "key prefix used by the mirroring engine")

	return cmd
}

// fetchSnapshot reassembles the engine/link/app hashes a counters.RedisSink
// writes into the nested document shape breathectl reports and jq filters
// query: {"engine": {...}, "link": {<spec>: {...}}, "app": {<name>: {...}}}.
func fetchSnapshot(addr, prefix string) (map[string]interface{}, error) {
	if prefix == "" {
		prefix = "breathe"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snapshot := map[string]interface{}{
		"engine": map[string]uint64{},
		"link":   map[string]map[string]uint64{},
		"app":    map[string]map[string]uint64{},
	}

	keys, err := client.Keys(ctx, prefix+":*").Result()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	for _, key := range keys {
		raw, err := client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		fields := make(map[string]uint64, len(raw))
		for k, v := range raw {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				continue
			}
			fields[k] = n
		}

		rest := strings.TrimPrefix(key, prefix+":")
		switch {
		case rest == "engine":
			snapshot["engine"] = fields
		case strings.HasPrefix(rest, "link:"):
			snapshot["link"].(map[string]map[string]uint64)[strings.TrimPrefix(rest, "link:")] = fields
		case strings.HasPrefix(rest, "app:"):
			snapshot["app"].(map[string]map[string]uint64)[strings.TrimPrefix(rest, "app:")] = fields
		}
	}

	return snapshot, nil
}

// runJQ parses and runs expr against doc, printing each result value as a
// JSON line.
func runJQ(expr string, doc interface{}) error {
	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("parse jq expression: %w", err)
	}

	// jq filters operate on plain JSON values; round-trip through
	// encoding/json so map[string]uint64 etc. become map[string]interface{}.
	normalized, err := normalizeForJQ(doc)
	if err != nil {
		return err
	}

	iter := query.Run(normalized)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return fmt.Errorf("jq: %w", err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

func normalizeForJQ(doc interface{}) (interface{}, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return v, nil
}
