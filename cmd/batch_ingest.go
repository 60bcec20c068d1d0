/*
Copyright © 2025 bookbrain-ai
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/bookbrain-ai/bookbrain-be/utils"
	"github.com/spf13/cobra"
)

// batchIngestCmd represents the batchIngest command
var batchIngestCmd = &cobra.Command{
	Use:   "batch-ingest",
	Short: "Ingest every PDF and DOCX file in a directory",
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		include, _ := cmd.Flags().GetBool("include")

		if dir == "" {
			log.Fatal("--dir is required")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Fatalf("Failed to read directory: %v", err)
		}

		a, err := buildApp(cfgFile)
		if err != nil {
			log.Fatalf("Failed to build application: %v", err)
		}

		ingested, failed := 0, 0
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext != ".pdf" && ext != ".docx" {
				continue
			}
			path, err := utils.CopyFileWithTimestamp(filepath.Join(dir, entry.Name()), a.cfg.UploadDir)
			if err != nil {
				log.Printf("Failed to copy %s: %v", entry.Name(), err)
				failed++
				continue
			}
			fmt.Println("Ingesting", path)

			doc, err := a.ingest.IngestPath(context.Background(), types.IngestRequest{}, path, nil)
			if err != nil {
				log.Printf("Failed to ingest %s: %v", path, err)
				failed++
				continue
			}
			if include {
				if err := a.ingest.SetIncluded(context.Background(), doc.ID, true); err != nil {
					log.Printf("Failed to include %s: %v", doc.ID, err)
				}
			}
			fmt.Printf("  id=%s status=%s pages=%d\n", doc.ID, doc.Status, doc.TotalPages)
			ingested++
		}
		fmt.Printf("Done: %d ingested, %d failed\n", ingested, failed)
	},
}

func init() {
	rootCmd.AddCommand(batchIngestCmd)

	batchIngestCmd.Flags().StringP("dir", "d", "", "Directory of files to ingest")
	batchIngestCmd.Flags().Bool("include", false, "Include ingested documents in retrieval")
}
