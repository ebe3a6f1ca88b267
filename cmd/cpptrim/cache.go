package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cpptrim/cpptrim/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Result cache management commands",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*cache.Cache, error) {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return nil, err
	}
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	store, err := openCache()
	if err != nil {
		return err
	}

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	fmt.Printf("Entries:    %d\n", stats.Entries)
	fmt.Printf("Total size: %d bytes\n", stats.TotalSize)
	if stats.Entries > 0 {
		fmt.Printf("Oldest:     %s ago\n", stats.OldestAge.Round(time.Second))
		fmt.Printf("Newest:     %s ago\n", stats.NewestAge.Round(time.Second))
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	store, err := openCache()
	if err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("Cache cleared")
	return nil
}
