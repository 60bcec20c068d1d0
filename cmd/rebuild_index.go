/*
Copyright © 2025 bookbrain-ai
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// rebuildIndexCmd represents the rebuildIndex command
var rebuildIndexCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the vector index from stored chunks",
	Long: `Drops the vector index and re-embeds every stored chunk. Use this
after changing the embedding model or recovering from index corruption;
chunk storage is the source of truth and is never modified.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := buildApp(cfgFile)
		if err != nil {
			log.Fatalf("Failed to build application: %v", err)
		}
		if err := a.ingest.RebuildIndex(context.Background()); err != nil {
			log.Fatalf("Failed to rebuild index: %v", err)
		}
		fmt.Println("Index rebuilt")
	},
}

func init() {
	rootCmd.AddCommand(rebuildIndexCmd)
}
