package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"contentcal/internal/codec"
	"contentcal/internal/config"
	"contentcal/internal/fsutil"
	"contentcal/internal/importer"
	appLog "contentcal/internal/log"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	debug      bool
	importPath string
	exportFmt  string
	outPath    string
}

func main() {
	os.Exit(run())
}

func run() int {
	defer appLog.Sync()

	flags := parseFlags()

	if err := config.LoadEnvFiles(".env", ".env.local"); err != nil {
		appLog.Error("failed to load env files", err)
		return 1
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}

	// CLI overrides config file values.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.debug {
		conf.Log.Level = "debug"
	}
	appLog.Configure(appLog.ParseLevel(conf.Log.Level), conf.Log.Format)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		return 1
	}

	appLog.Info("contentcal starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"content_backend", conf.Content.Backend,
		"settings_backend", conf.Settings.Backend,
		"backup", conf.Backup.Enabled,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, conf)
	if err != nil {
		appLog.Error("failed to initialize", err)
		return 1
	}
	defer a.Close()

	switch {
	case flags.importPath != "":
		err = runImport(ctx, a, flags.importPath)
	case flags.exportFmt != "":
		err = runExport(ctx, a, flags.exportFmt, flags.outPath)
	default:
		err = a.Serve(ctx)
	}
	if err != nil {
		appLog.Error("contentcal failed", err)
		return 1
	}
	appLog.Info("contentcal exiting")
	return 0
}

// runImport imports one local file and prints the summary. It fails when
// nothing could be created.
func runImport(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	size := int64(-1)
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	res, err := a.importer.ImportFile(ctx, path, size, f, func(p importer.Progress) {
		appLog.Info("import progress", "done", p.Done, "total", p.Total, "percent", int(p.Fraction()*100))
	})
	if res != nil {
		fmt.Printf("Imported %d of %d items\n", res.SuccessCount, res.Total)
		for _, e := range res.Errors {
			fmt.Println(e)
		}
	}
	if err != nil {
		return err
	}
	if res.SuccessCount == 0 {
		return errors.New("no items were imported")
	}
	return nil
}

// runExport writes one export to out, or to stdout when out is "" or "-".
func runExport(ctx context.Context, a *app, format, out string) error {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return err
	}
	art, err := a.exporter.ExportFrom(ctx, a.content, f)
	if err != nil {
		return err
	}

	if out == "" || out == "-" {
		_, err = os.Stdout.Write(art.Body)
		return err
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		out += art.Filename
	}
	if err := fsutil.WriteFileAtomic(out, art.Body, 0o644); err != nil {
		return err
	}
	appLog.Info("export written", "path", out, "items", art.Items, "bytes", len(art.Body))
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/contentcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&cfg.importPath, "import", "", "Import a CSV, ICS or JSON file and exit")
	flag.StringVar(&cfg.exportFmt, "export", "", "Export the calendar as csv, ics, json or xlsx and exit")
	flag.StringVar(&cfg.outPath, "out", "", "Export destination file or directory (default stdout)")

	flag.Parse()

	return cfg
}
