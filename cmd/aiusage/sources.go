package main

import (
	"fmt"
	"io"
	"log"
	"slices"

	"github.com/janekbaraniewski/aiusage/internal/config"
	"github.com/janekbaraniewski/aiusage/internal/core"
	"github.com/janekbaraniewski/aiusage/internal/detect"
	"github.com/janekbaraniewski/aiusage/internal/providers"
)

// paths locates every file the source list is built from.
type paths struct {
	settings    string
	credentials string
	authFiles   []string
	envFiles    []string
}

func defaultPaths() paths {
	return paths{
		settings:    config.ConfigPath(),
		credentials: config.CredentialsPath(),
		authFiles:   config.AuthFilePaths(),
		envFiles:    config.EnvFilePaths(),
	}
}

// watched returns the files whose change should trigger a reload.
func (p paths) watched(cfg config.Config) []string {
	out := []string{p.settings, p.credentials}
	out = append(out, cfg.AuthFiles...)
	return append(out, p.authFiles...)
}

type resolved struct {
	cfg       config.Config
	sources   []core.SourceConfig
	detection detect.Result
}

// resolveSources builds the source list in priority order: settings.json
// sources, stored credentials, auth.json files, auto-detection, then sources
// detected on an earlier run.
func resolveSources(p paths, autoDetect func() detect.Result) (resolved, error) {
	cfg, err := config.LoadFrom(p.settings)
	if err != nil {
		return resolved{cfg: cfg}, err
	}

	config.LoadEnvFiles(append(slices.Clone(cfg.EnvFiles), p.envFiles...)...)

	creds, err := config.LoadCredentialsFrom(p.credentials)
	if err != nil {
		log.Printf("[aiusage] ignoring credentials: %v", err)
	}
	auth := config.LoadAuthFiles(append(slices.Clone(cfg.AuthFiles), p.authFiles...)...)

	var detection detect.Result
	if cfg.AutoDetect && autoDetect != nil {
		detection = autoDetect()
		log.Printf("[aiusage] %s", detection.Summary())
	}

	sources := config.MergeSources(cfg.Sources, creds.Sources(), auth, detection.Sources, cfg.DetectedSources)
	return resolved{cfg: cfg, sources: sources, detection: detection}, nil
}

func newEngine(cfg config.Config) *core.Engine {
	e := core.NewEngine(cfg.RefreshInterval(),
		core.WithMaxConcurrency(cfg.MaxConcurrency),
		core.WithObserver(core.LogObserver{}),
	)
	providers.Register(e)
	return e
}

func printSources(w io.Writer, e *core.Engine, r resolved) {
	fmt.Fprintln(w, nameStyle.UnsetWidth().Render("Adapters"))
	for _, s := range e.Sources() {
		info := s.Describe()
		kind := string(info.Plan)
		if slices.Contains(providers.SystemSources, s.ID()) {
			kind += ", local credentials"
		}
		fmt.Fprintf(w, "  %-16s %-22s %s\n", s.ID(), info.Name, dimStyle.Render(kind))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, nameStyle.UnsetWidth().Render("Configured sources"))
	if len(r.sources) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
	}
	for _, src := range r.sources {
		key := "no key"
		if src.ResolveAPIKey() != "" {
			key = "key set"
		}
		fmt.Fprintf(w, "  %-16s %-28s %s\n", src.SourceID, src.AuthSource, dimStyle.Render(key))
	}

	if len(r.detection.Tools) > 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, r.detection.Summary())
	}
}
