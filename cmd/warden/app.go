package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/alert"
	"github.com/wardenhq/warden/pkg/cluster"
	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/storage"
)

// app is the wired-up dependency set shared by the subcommands.
type app struct {
	cfg      *config.Config
	store    *storage.BoltStore
	policies *policy.Store
	gateway  cluster.Gateway
	alerts   alert.Sink
}

// loadApp builds the dependency set from the config file referenced by the
// --config flag. The caller must Close it.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	dataDir, err := cfg.DatabaseDir()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	policies := policy.New(store)
	policies.SetEnvValues(cfg.PolicyValues())

	var alerts alert.Sink = alert.Noop{}
	if cfg.Alertmanager.URL != "" {
		alerts = alert.NewAlertmanagerSink(cfg.Alertmanager.URL)
	}

	return &app{
		cfg:      cfg,
		store:    store,
		policies: policies,
		gateway:  cluster.NewKubectlGateway(cfg.Kubectl.Binary, cfg.Kubectl.Kubeconfig),
		alerts:   alerts,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "warning: closing state store: %v\n", err)
	}
}
