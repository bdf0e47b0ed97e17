package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/pkg/zip"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		output      string
		concurrency int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Download a project's images into a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if output == "" {
				output = args[0] + ".zip"
			}
			n, err := a.export(ctx, args[0], output, concurrency)
			if err != nil {
				return err
			}
			a.printf("wrote %d images to %s\n", n, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (defaults to <project-id>.zip)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel downloads")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this long")
	return cmd
}

// export downloads every saved result and writes them, with a prompts.txt
// listing, into a zip at output. It returns the number of images written.
func (a *app) export(ctx context.Context, projectID, output string, concurrency int) (int, error) {
	env, err := a.client.GetProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	results := domain.NormalizeResults(env.State.SavedResults, env.State.Prompts)

	assets := make([]zip.Asset, len(results))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, rec := range results {
		if !rec.HasImage() {
			continue
		}
		i, rec := i, rec
		g.Go(func() error {
			data, contentType, err := a.client.Download(gctx, rec.Location())
			if err != nil {
				return fmt.Errorf("downloading shot %d: %w", i+1, err)
			}
			assets[i] = zip.Asset{
				Filename: fmt.Sprintf("shot_%02d%s", i+1, assetExt(rec.Location(), contentType)),
				MIME:     contentType,
				Data:     data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var (
		out     []zip.Asset
		prompts strings.Builder
	)
	for i, asset := range assets {
		fmt.Fprintf(&prompts, "%02d\t%s\n", i+1, results[i].Prompt)
		if asset.Filename != "" {
			out = append(out, asset)
		}
	}
	images := len(out)
	out = append(out, zip.Asset{Filename: "prompts.txt", MIME: "text/plain", Data: []byte(prompts.String())})

	f, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	if err := zip.Write(f, out); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing archive: %w", err)
	}
	return images, nil
}

func assetExt(location, contentType string) string {
	if ext := path.Ext(strings.SplitN(location, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
