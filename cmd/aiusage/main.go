package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/aiusage/internal/config"
	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/detect"
	"github.com/janekbaraniewski/aiusage/internal/version"
)

func main() {
	if os.Getenv("AIUSAGE_DEBUG") == "" {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(defaultPaths(), detect.AutoDetect).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, core.ErrAllSourcesUnreachable) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCommand(p paths, autoDetect func() detect.Result) *cobra.Command {
	var asJSON bool

	root := &cobra.Command{
		Use:           "aiusage",
		Short:         "aiusage reports remaining quota and spend across AI services.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := resolveSources(p, autoDetect)
			if err != nil {
				return reportConfigError(cmd, p, err)
			}
			records, err := newEngine(r.cfg).Refresh(cmd.Context(), r.sources)
			if err := output(cmd.OutOrStdout(), records, asJSON); err != nil {
				return err
			}
			if errors.Is(err, core.ErrAllSourcesUnreachable) {
				fmt.Fprintln(cmd.ErrOrStderr(), errStyle.Render("No source could be reached. Check your network connection."))
			}
			return err
		},
	}
	root.PersistentFlags().BoolVar(&asJSON, "json", false, "print records as JSON")

	root.AddCommand(newWatchCommand(p, autoDetect, &asJSON))
	root.AddCommand(newSourcesCommand(p, autoDetect))
	root.AddCommand(newKeysCommand(p))
	return root
}

func output(w io.Writer, records []core.UsageRecord, asJSON bool) error {
	if asJSON {
		return writeJSON(w, records)
	}
	renderRecords(w, records, time.Now())
	return nil
}

func reportConfigError(cmd *cobra.Command, p paths, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Config path: %s\n", p.settings)
	return fmt.Errorf("loading config: %w", err)
}

func newWatchCommand(p paths, autoDetect func() detect.Result, asJSON *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll continuously and reprint on every refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := resolveSources(p, autoDetect)
			if err != nil {
				return reportConfigError(cmd, p, err)
			}
			ctx := cmd.Context()
			engine := newEngine(r.cfg)
			engine.SetSources(r.sources)

			out := cmd.OutOrStdout()
			engine.OnUpdate(func(records []core.UsageRecord) {
				if !*asJSON {
					fmt.Fprintf(out, "\n%s\n", dimStyle.Render("Updated "+time.Now().Format("15:04:05")))
				}
				if err := output(out, records, *asJSON); err != nil {
					log.Printf("[aiusage] writing output: %v", err)
				}
			})

			reload := func() {
				next, err := resolveSources(p, autoDetect)
				if err != nil {
					log.Printf("[aiusage] reload failed, keeping previous sources: %v", err)
					return
				}
				log.Printf("[aiusage] sources reloaded (%d)", len(next.sources))
				engine.SetSources(next.sources)
				if _, err := engine.RefreshAll(ctx); err != nil {
					log.Printf("[aiusage] refresh after reload: %v", err)
				}
			}
			if err := config.Watch(ctx, p.watched(r.cfg), config.DefaultDebounce, reload); err != nil {
				log.Printf("[aiusage] live reload disabled: %v", err)
			}

			engine.Run(ctx)
			return nil
		},
	}
}

func newSourcesCommand(p paths, autoDetect func() detect.Result) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List adapters and the sources that would be polled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := resolveSources(p, autoDetect)
			if err != nil {
				return reportConfigError(cmd, p, err)
			}
			printSources(cmd.OutOrStdout(), newEngine(r.cfg), r)
			if !save {
				return nil
			}
			if err := config.SaveDetectedTo(p.settings, r.detection.Sources); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nSaved %d detected source(s) to %s\n", len(r.detection.Sources), p.settings)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "persist detected sources (without keys) to settings.json")
	return cmd
}

func newKeysCommand(p paths) *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys stored in credentials.json",
	}
	keys.AddCommand(&cobra.Command{
		Use:   "set <source-id> <api-key>",
		Short: "Store an API key for a source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveCredentialTo(p.credentials, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored key for %s\n", args[0])
			return nil
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "delete <source-id>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.DeleteCredentialFrom(p.credentials, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed key for %s\n", args[0])
			return nil
		},
	})
	return keys
}
