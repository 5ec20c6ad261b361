// pdflock locks PDFs from the command line: files and folders are queued
// as one batch, locked with the same passwords and restrictions, and the
// results are written as a PDF or a zip archive.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/mtiwari1/gopherlock/internal/archive"
	"github.com/mtiwari1/gopherlock/internal/batch"
	"github.com/mtiwari1/gopherlock/internal/config"
	"github.com/mtiwari1/gopherlock/internal/hasher"
	"github.com/mtiwari1/gopherlock/internal/locker"
	"github.com/mtiwari1/gopherlock/internal/logging"
	"github.com/mtiwari1/gopherlock/internal/storage"
)

type flags struct {
	openPassword       string
	permissionPassword string
	restrict           []string
	allow              []string
	method             string
	out                string
	configPath         string
	logLevel           string
}

func main() {
	var f flags
	pflag.StringVar(&f.openPassword, "open-password", "", "password required to open the documents")
	pflag.StringVar(&f.permissionPassword, "permission-password", "", "password that lifts the restrictions")
	pflag.StringSliceVar(&f.restrict, "restrict", nil, "restrictions to apply (default: all)")
	pflag.StringSliceVar(&f.allow, "allow", nil, "restrictions to leave out")
	pflag.StringVar(&f.method, "method", string(locker.DefaultMethod), "encryption method: aes-256, aes-128 or rc4-128")
	pflag.StringVarP(&f.out, "out", "o", ".", "output directory")
	pflag.StringVarP(&f.configPath, "config", "c", "", "optional config file; its storage section is used")
	pflag.StringVar(&f.logLevel, "log-level", "warn", "log level")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: pdflock [flags] <file.pdf|dir>...\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}
	if err := run(f, pflag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "pdflock:", err)
		os.Exit(1)
	}
}

func run(f flags, args []string) error {
	logger, closer, err := logging.New(f.logLevel, "text", "stderr")
	if err != nil {
		return err
	}
	defer closer.Close()

	restrictions, err := restrictionSet(f.restrict, f.allow)
	if err != nil {
		return err
	}
	opts := locker.Options{
		OpenPassword:       f.openPassword,
		PermissionPassword: f.permissionPassword,
		Restrictions:       restrictions,
		Method:             locker.Method(f.method),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, f.configPath)
	if err != nil {
		return err
	}

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no PDF files found")
	}

	b := batch.New(locker.NewService(store, 0, logger), batch.WithLogger(logger))
	if err := queue(ctx, b, store, inputs); err != nil {
		return err
	}

	events, unsubscribe := b.Subscribe(64)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		printProgress(events)
	}()

	// The first signal stops at the next file; the run still finishes and
	// whatever was locked is written out.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	summary, err := b.Run(runCtx, opts)
	unsubscribe()
	<-progressDone
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d locked, %d failed\n", summary.Stats.Succeeded, summary.Stats.Failed)

	for _, r := range b.Snapshot().Records {
		if r.Status == batch.StatusFailed {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", r.RelativePath, r.ErrorMessage)
		}
	}

	out, err := archive.New(archive.StoreFetcher{Store: store}, logger).Package(runCtx, b.Succeeded())
	if err != nil {
		return err
	}
	dest := filepath.Join(f.out, out.Name)
	if err := os.MkdirAll(f.out, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%s, %d file(s))\n", dest, humanize.Bytes(uint64(len(out.Data))), out.Entries)

	if summary.Stats.Failed > 0 {
		return fmt.Errorf("%d file(s) failed", summary.Stats.Failed)
	}
	return nil
}

// openStore uses the configured store when a config file is given and an
// in-memory store otherwise.
func openStore(ctx context.Context, configPath string) (storage.Store, error) {
	if configPath == "" {
		return storage.NewMemoryStore(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return config.CreateStore(ctx, &cfg.Storage)
}

// queue reads and uploads every input, adding it to b as ready.
func queue(ctx context.Context, b *batch.Batch, store storage.Store, inputs []input) error {
	for _, in := range inputs {
		data, meta, err := hasher.ReadPDF(in.Path)
		if err != nil {
			return err
		}
		key, err := storage.Upload(ctx, store, data, in.Name)
		if err != nil {
			return err
		}
		if _, err := b.AddReady(in.Name, in.RelativePath, key, meta.Size); err != nil {
			return err
		}
	}
	return nil
}

func printProgress(events <-chan batch.Event) {
	for ev := range events {
		switch ev.Kind {
		case batch.EventRecordUpdated:
			if ev.Record == nil {
				continue
			}
			switch ev.Record.Status {
			case batch.StatusSuccess:
				fmt.Fprintf(os.Stderr, "[%d/%d] locked %s (%s)\n",
					ev.Stats.Processed, ev.Stats.Total, ev.Record.RelativePath, humanize.Bytes(uint64(ev.Record.Size)))
			case batch.StatusFailed:
				fmt.Fprintf(os.Stderr, "[%d/%d] failed %s\n", ev.Stats.Processed, ev.Stats.Total, ev.Record.RelativePath)
			}
		case batch.EventRunFinished:
			if ev.Cancelled {
				fmt.Fprintln(os.Stderr, "stopped before all files were processed")
			}
		}
	}
}
