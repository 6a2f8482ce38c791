package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/lms-tenant-cache/internal/app"
	"github.com/Sternrassler/lms-tenant-cache/pkg/entity"
	"github.com/Sternrassler/lms-tenant-cache/pkg/warmup"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate the cache",
		Long: `Inspect and invalidate the LMS cache.

Examples:
  lms-cache cache clear --tenant 3
  lms-cache cache warm --tenant 3 --courses 7,8 --users 5
  lms-cache cache keys 't3:*'
  lms-cache cache set feature:flags '{"beta":true}' --ttl 10m`,
	}
	cmd.AddCommand(
		newClearCmd(c),
		newWarmCmd(c),
		newStatsCmd(c),
		newFlushCmd(c),
		newKeysCmd(c),
		newExpiredCmd(c),
		newGetCmd(c),
		newSetCmd(c),
		newDeleteCmd(c),
	)
	return cmd
}

var errNeedForce = errors.New("refusing to flush every tenant without --force")

func newClearCmd(c *cli) *cobra.Command {
	var tenantID int64
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear one tenant's cache, or everything with --force",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 && !force {
				return errNeedForce
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if tenantID > 0 {
					a.Manager.ClearTenantCache(cmd.Context(), tenantID)
					fmt.Fprintf(c.stdout, "Cleared cache of tenant %d\n", tenantID)
					return nil
				}
				return flush(c, a, cmd)
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant to clear")
	cmd.Flags().BoolVar(&force, "force", false, "allow clearing every tenant")
	return cmd
}

func newFlushCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove every cache entry of every tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return errNeedForce
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return flush(c, a, cmd)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm the flush")
	return cmd
}

func flush(c *cli, a *app.App, cmd *cobra.Command) error {
	if err := a.Manager.FlushAll(cmd.Context()); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	fmt.Fprintln(c.stdout, "Flushed all cache entries")
	return nil
}

func newWarmCmd(c *cli) *cobra.Command {
	var tenantID int64
	var courses, users []int64
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Precompute a tenant's dashboard and, optionally, courses and users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 {
				return errors.New("--tenant is required")
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				ctx := cmd.Context()
				if !a.Manager.WarmUpTenantCache(ctx, tenantID) {
					return fmt.Errorf("dashboard warm-up of tenant %d failed", tenantID)
				}
				fmt.Fprintf(c.stdout, "Warmed dashboard of tenant %d\n", tenantID)

				failed := 0
				for _, run := range []struct {
					family string
					warmer warmup.Warmer
					ids    []int64
				}{
					{entity.FamilyCourse, a.Courses, courses},
					{entity.FamilyUser, a.Users, users},
				} {
					if len(run.ids) == 0 {
						continue
					}
					res := a.Runner.Run(ctx, run.family, run.warmer, run.ids)
					fmt.Fprintf(c.stdout, "Warmed %d %s entries, %d failed\n", res.Warmed, run.family, res.Failed)
					failed += res.Failed
				}
				if failed > 0 {
					return fmt.Errorf("%d warm-ups failed", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant to warm (required)")
	cmd.Flags().Int64SliceVar(&courses, "courses", nil, "course ids to warm")
	cmd.Flags().Int64SliceVar(&users, "users", nil, "user ids to warm")
	return cmd
}

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache backend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				stats := a.Manager.GetCacheStats(cmd.Context())
				if stats.Error != "" {
					return fmt.Errorf("cache stats unavailable: %s", stats.Error)
				}
				w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Backend:\t%s %s\n", stats.Backend, stats.Version)
				fmt.Fprintf(w, "Used memory:\t%s\n", stats.UsedMemory)
				fmt.Fprintf(w, "Clients:\t%d\n", stats.ConnectedClients)
				fmt.Fprintf(w, "Keys:\t%d\n", stats.TotalKeys)
				fmt.Fprintf(w, "Hits / misses:\t%d / %d\n", stats.Hits, stats.Misses)
				fmt.Fprintf(w, "Hit rate:\t%.2f%%\n", stats.HitRate)
				fmt.Fprintf(w, "Uptime:\t%s\n", time.Duration(stats.UptimeSeconds)*time.Second)
				return w.Flush()
			})
		},
	}
}

func newKeysCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [PATTERN]",
		Short: "List cache keys matching a glob (default *)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				keys := a.Manager.GetCacheKeysByPattern(cmd.Context(), pattern)
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintln(c.stdout, k)
				}
				fmt.Fprintf(c.stderr, "%d keys\n", len(keys))
				return nil
			})
		},
	}
}

func newExpiredCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "expired",
		Short: "Remove stray keys that carry no TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				s := a.Manager.ClearExpiredCache(cmd.Context())
				fmt.Fprintf(c.stdout, "Scanned %d keys: %d expired, %d without TTL, %d removed, %d unreadable\n",
					s.Scanned, s.Expired, s.WithoutTTL, s.Removed, s.Unavailable)
				return nil
			})
		},
	}
}

func newGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the raw JSON stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				value, ok := a.Manager.GetCacheValue(cmd.Context(), args[0])
				if !ok {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(c.stdout, string(value))
				return nil
			})
		},
	}
}

func newSetCmd(c *cli) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "set KEY JSON",
		Short: "Store a raw JSON value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := json.RawMessage(args[1])
			if !json.Valid(value) {
				return fmt.Errorf("value is not valid JSON: %s", args[1])
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if !a.Manager.SetCacheValue(cmd.Context(), args[0], value, ttl) {
					return fmt.Errorf("failed to store %q", args[0])
				}
				fmt.Fprintf(c.stdout, "Stored %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "time to live (default 24h)")
	return cmd
}

func newDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"del"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if !a.Manager.DeleteCacheKey(cmd.Context(), args[0]) {
					return fmt.Errorf("failed to delete %q", args[0])
				}
				fmt.Fprintf(c.stdout, "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
