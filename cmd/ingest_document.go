/*
Copyright © 2025 bookbrain-ai
*/
package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/spf13/cobra"
)

// ingestDocumentCmd represents the ingestDocument command
var ingestDocumentCmd = &cobra.Command{
	Use:   "ingest-document",
	Short: "Ingest a single PDF or DOCX file into the knowledge base",
	Long: `Extracts text from the given file (running OCR on scanned pages),
chunks and embeds it, and indexes it for retrieval. The document starts
excluded from retrieval; use the inclusion endpoint or --include to opt it in.`,
	Run: func(cmd *cobra.Command, args []string) {
		filePath, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		author, _ := cmd.Flags().GetString("author")
		include, _ := cmd.Flags().GetBool("include")

		if filePath == "" {
			log.Fatal("--file is required")
		}

		a, err := buildApp(cfgFile)
		if err != nil {
			log.Fatalf("Failed to build application: %v", err)
		}

		statusChan := make(chan types.ProcessingDocumentStatus)
		go func() {
			for status := range statusChan {
				fmt.Println(formatProgress(status))
			}
		}()

		req := types.IngestRequest{Title: title, Author: author}
		doc, err := a.ingest.IngestPath(context.Background(), req, filePath, statusChan)
		close(statusChan)
		if err != nil {
			log.Fatalf("Failed to ingest document: %v", err)
		}

		if include {
			if err := a.ingest.SetIncluded(context.Background(), doc.ID, true); err != nil {
				log.Fatalf("Failed to include document: %v", err)
			}
		}
		fmt.Printf("Ingested %q: id=%s status=%s pages=%d included=%t\n",
			doc.Title, doc.ID, doc.Status, doc.TotalPages, include)
	},
}

// formatProgress renders one progress event for the terminal. Page
// events carry a method; Page is a zero-based index.
func formatProgress(status types.ProcessingDocumentStatus) string {
	if status.Method != "" {
		return fmt.Sprintf("page %d/%d method=%s confidence=%.2f",
			status.Page+1, status.TotalPages, status.Method, status.Confidence)
	}
	return status.Message
}

func init() {
	rootCmd.AddCommand(ingestDocumentCmd)

	ingestDocumentCmd.Flags().StringP("file", "f", "", "Path to the file to ingest")
	ingestDocumentCmd.Flags().String("title", "", "Document title (defaults to the file name)")
	ingestDocumentCmd.Flags().String("author", "", "Document author")
	ingestDocumentCmd.Flags().Bool("include", false, "Include the document in retrieval after ingesting")
}
