package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/talentsift/talentsift/internal/chunker"
	"github.com/talentsift/talentsift/internal/progress"
)

var (
	loadJDPath  string
	loadCVsGlob string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-ingest a JD and its candidate CVs from disk",
	Long: `Ingests one job description and every CV matching a glob pattern.
Text files (.txt, .md) are read as raw text; everything else is sent
base64-encoded for the LLM to read directly. Prints the generated
document IDs for later ranking.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loadJDPath == "" {
			return fmt.Errorf("--jd is required")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		jdContent, err := contentFromFile(loadJDPath)
		if err != nil {
			return err
		}
		jdResult, err := a.pipeline.ProcessJD(ctx, jdContent, filepath.Base(loadJDPath))
		if err != nil {
			return fmt.Errorf("processing JD %s: %w", loadJDPath, err)
		}
		fmt.Printf("JD %s ingested: %s\n", jdResult.Filename, jdResult.JDID)

		if loadCVsGlob == "" {
			return nil
		}

		paths, err := doublestar.FilepathGlob(loadCVsGlob)
		if err != nil {
			return fmt.Errorf("expanding CV glob %q: %w", loadCVsGlob, err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no CV files match %q", loadCVsGlob)
		}

		reporter := progress.NewReporter()
		reporter.Start(len(paths), "Ingesting CVs")

		batch := a.cfg.Ingest.MaxConcurrency
		failed := 0
		for done := 0; done < len(paths); done += batch {
			end := done + batch
			if end > len(paths) {
				end = len(paths)
			}

			contents := make([]chunker.Content, 0, end-done)
			filenames := make([]string, 0, end-done)
			for _, path := range paths[done:end] {
				content, err := contentFromFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", path, err)
					failed++
					continue
				}
				contents = append(contents, content)
				filenames = append(filenames, filepath.Base(path))
			}

			results := a.pipeline.ProcessCVBatch(ctx, contents, filenames, jdResult.JDID)
			for _, item := range results {
				if item.Error != "" {
					fmt.Fprintf(os.Stderr, "Failed %s: %s\n", item.Filename, item.Error)
					failed++
				} else {
					fmt.Printf("CV %s ingested: %s\n", item.Filename, item.Result.CVID)
				}
			}
			reporter.Update(end, fmt.Sprintf("Ingesting CVs (%d/%d)", end, len(paths)))
		}
		reporter.Finish()

		if failed > 0 {
			return fmt.Errorf("%d of %d CVs failed to ingest", failed, len(paths))
		}
		return nil
	},
}

// mimeTypes maps file extensions to the MIME type sent with base64 content.
var mimeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// contentFromFile reads a document from disk. Plain-text formats become raw
// text; binary formats are base64-encoded with their MIME type.
func contentFromFile(path string) (chunker.Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chunker.Content{}, fmt.Errorf("reading %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".txt" || ext == ".md" {
		return chunker.Content{RawText: string(data)}, nil
	}

	mime, ok := mimeTypes[ext]
	if !ok {
		return chunker.Content{}, fmt.Errorf("unsupported file type %q for %s", ext, path)
	}
	return chunker.Content{Base64: base64.StdEncoding.EncodeToString(data), MIME: mime}, nil
}

func init() {
	loadCmd.Flags().StringVar(&loadJDPath, "jd", "", "path to the job description file")
	loadCmd.Flags().StringVar(&loadCVsGlob, "cvs", "", "glob pattern for CV files (supports **)")
	rootCmd.AddCommand(loadCmd)
}
