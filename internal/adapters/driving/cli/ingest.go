package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/extract"
	"github.com/parchment-labs/recall/internal/logger"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index saved page text files from a directory",
	Long: `Walks a directory of saved pages (.txt, .md, .html) and indexes
each file under a file:// URL. HTML is stripped to plain text first.
With --watch, keeps running and indexes files as they appear or change.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "keep watching the directory for changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]

	if memoryService == nil {
		return errors.New("memory service not configured")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	ctx := context.Background()

	added, skipped, failed := 0, 0, 0
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !ingestable(path) {
			return nil
		}
		report, err := ingestFile(ctx, path)
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			failed++
			return nil
		}
		added += report.ChunksAdded
		skipped += report.ChunksSkipped
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", dir, walkErr)
	}

	cmd.Printf("Ingested %s: %d chunks added, %d skipped", dir, added, skipped)
	if failed > 0 {
		cmd.Printf(", %d files failed", failed)
	}
	cmd.Println()

	if !ingestWatch {
		return nil
	}
	return watchDir(cmd, ctx, dir)
}

// watchDir blocks, indexing files as they are created or modified,
// until interrupted.
func watchDir(cmd *cobra.Command, ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	cmd.Printf("Watching %s (ctrl-c to stop)\n", dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !ingestable(event.Name) {
				continue
			}
			report, err := ingestFile(ctx, event.Name)
			if err != nil {
				logger.Warn("indexing %s: %v", event.Name, err)
				continue
			}
			if report.ChunksAdded > 0 {
				cmd.Printf("Indexed %s: %d chunks\n", event.Name, report.ChunksAdded)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: %v", err)

		case <-sigCh:
			cmd.Println("Stopping watch.")
			return nil
		}
	}
}

// ingestFile indexes one saved page file under a file:// URL. HTML
// files are stripped to plain text first.
func ingestFile(ctx context.Context, path string) (domain.IngestReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestReport{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	text := string(raw)
	if isHTML(path) {
		title = extract.Title(text, path)
		text = extract.Text(text)
	}

	return memoryService.IndexPage(ctx, domain.PageInput{
		URL:   "file://" + abs,
		Title: title,
		Text:  text,
	})
}

// ingestable reports whether a path looks like a saved page.
func ingestable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}
