package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/dao-provisioning-backend/cmd/flags"
	"github.com/ruteri/dao-provisioning-backend/common"
	"github.com/ruteri/dao-provisioning-backend/environment"
	"github.com/ruteri/dao-provisioning-backend/httpserver"
	"github.com/ruteri/dao-provisioning-backend/interfaces"
	"github.com/ruteri/dao-provisioning-backend/provisioner"
	"github.com/ruteri/dao-provisioning-backend/storage"
	"github.com/urfave/cli/v2"
)

var dryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "provision against an in-memory ledger and print the manifest without storing it",
}

var provisionFlags = []cli.Flag{
	flags.NetworkFlag,
	flags.SettingsFlag,
	flags.RpcAddrFlag,
	flags.PrivateKeyFlag,
	flags.ArtifactsFlag,
	flags.StoreFlag,
	dryRunFlag,
}

var showFlags = []cli.Flag{
	flags.NetworkFlag,
	flags.StoreFlag,
}

var serveFlags = []cli.Flag{
	flags.SettingsFlag,
	flags.RpcAddrFlag,
	flags.PrivateKeyFlag,
	flags.ArtifactsFlag,
	flags.StoreFlag,
	dryRunFlag,
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringSliceFlag{
		Name:  "operator",
		Usage: "operator account allowed to start runs, repeatable; unset disables authentication",
	},
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:    "dao-provisioner",
		Usage:   "Provision an on-chain organization and publish its deployment manifest",
		Version: common.Version,
		Flags:   flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "provision",
				Usage:  "Provision the organization on one network",
				Flags:  provisionFlags,
				Action: runProvision,
			},
			{
				Name:   "show",
				Usage:  "Print the stored manifest of a network",
				Flags:  showFlags,
				Action: runShow,
			},
			{
				Name:   "serve",
				Usage:  "Serve the provisioning API",
				Flags:  serveFlags,
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeLocations(cCtx *cli.Context) ([]interfaces.StoreLocation, error) {
	var locations []interfaces.StoreLocation
	for _, uri := range cCtx.StringSlice(flags.StoreFlag.Name) {
		loc, err := interfaces.NewStoreLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func openStore(cCtx *cli.Context, factory *storage.StoreFactory) (interfaces.ManifestStore, error) {
	locations, err := storeLocations(cCtx)
	if err != nil {
		return nil, err
	}
	return factory.CreateMultiStore(locations)
}

func newPipeline(cCtx *cli.Context, logger *slog.Logger, store interfaces.ManifestStore) (*pipeline, error) {
	settings, err := environment.LoadSettings(cCtx.String(flags.SettingsFlag.Name))
	if err != nil {
		return nil, err
	}

	privateKey := cCtx.String(flags.PrivateKeyFlag.Name)
	if cCtx.Bool(dryRunFlag.Name) {
		return newDryRunPipeline(logger, settings, privateKey)
	}
	return newLivePipeline(cCtx.Context, logger, settings, store,
		cCtx.String(flags.RpcAddrFlag.Name),
		cCtx.String(flags.ArtifactsFlag.Name),
		privateKey)
}

func printManifest(m *interfaces.Manifest) error {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runProvision(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	network := cCtx.String(flags.NetworkFlag.Name)

	store, err := openStore(cCtx, storage.NewStoreFactory(logger))
	if err != nil {
		logger.Error("Failed to open manifest store", "err", err)
		return err
	}

	p, err := newPipeline(cCtx, logger, store)
	if err != nil {
		logger.Error("Failed to prepare provisioning", "err", err)
		return err
	}
	defer p.Close()

	ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manifest, err := p.Run(ctx, network, func(step provisioner.Step, status provisioner.StepStatus) {
		logger.Debug("Step", "step", step, "status", status)
	})
	if err != nil {
		logger.Error("Provisioning failed", "err", err)
		return err
	}

	return printManifest(manifest)
}

func runShow(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	store, err := openStore(cCtx, storage.NewStoreFactory(logger))
	if err != nil {
		logger.Error("Failed to open manifest store", "err", err)
		return err
	}

	manifest, err := store.FetchManifest(cCtx.Context, cCtx.String(flags.NetworkFlag.Name))
	if err != nil {
		logger.Error("Failed to fetch manifest", "err", err)
		return err
	}

	return printManifest(manifest)
}

func runServe(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	operators, err := interfaces.ParseAddresses(cCtx.StringSlice("operator"))
	if err != nil {
		logger.Error("Invalid operator address", "err", err)
		return err
	}

	store, err := openStore(cCtx, storage.NewStoreFactory(logger))
	if err != nil {
		logger.Error("Failed to open manifest store", "err", err)
		return err
	}

	p, err := newPipeline(cCtx, logger, store)
	if err != nil {
		logger.Error("Failed to prepare provisioning", "err", err)
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(cCtx.Context)
	defer cancel()

	handler := httpserver.NewHandler(ctx, p, store, logger)
	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr"))
	server, err := httpserver.New(cfg, handler, httpserver.NewOperatorAuth(operators, logger))
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received, waiting for the in-flight run")

	go func() {
		<-exit
		logger.Warn("Second signal received, aborting the in-flight run")
		cancel()
	}()

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
