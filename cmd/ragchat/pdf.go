package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adoptiveai/ragchat/agentapi"
	"github.com/adoptiveai/ragchat/annotate"
)

var (
	pdfBlocks []int
	pdfOutput string
	pdfDebug  bool
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <document>",
	Short: "Fetch a document with its citation highlights burned in",
	Long: `Pdf fetches a source document from the service, asks for the
highlight regions of the given blocks, and writes the document with
the highlights drawn on. With --debug every structural block boundary
is highlighted instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPdf,
}

func init() {
	pdfCmd.Flags().IntSliceVar(&pdfBlocks, "blocks", nil, "Block indices to highlight")
	pdfCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "Output path (default: the document name)")
	pdfCmd.Flags().BoolVar(&pdfDebug, "debug", false, "Highlight all structural block boundaries")
	rootCmd.AddCommand(pdfCmd)
}

func runPdf(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	client := newClient(cfg)
	ctx := cmd.Context()
	document := args[0]

	doc, err := client.PDF(ctx, document)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", document, err)
	}

	var annotations []agentapi.Annotation
	if pdfDebug {
		annotations, err = client.DebugBlocks(ctx, document, cfg.UserID)
	} else if len(pdfBlocks) > 0 {
		annotations, err = client.Annotations(ctx, agentapi.AnnotationsRequest{
			PDFFile:      document,
			BlockIndices: pdfBlocks,
			UserID:       cfg.UserID,
		})
	}
	if err != nil {
		return fmt.Errorf("fetching annotations: %w", err)
	}

	regions := make([]annotate.Region, 0, len(annotations))
	for _, a := range annotations {
		regions = append(regions, annotate.Region{
			Page:   a.Page,
			X:      a.X,
			Y:      a.Y,
			Width:  a.Width,
			Height: a.Height,
		})
	}
	out := annotate.Overlay(doc, regions)

	path := pdfOutput
	if path == "" {
		path = document
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d highlight(s))\n", path, len(regions))
	return nil
}
