// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command gaion is the node's entrypoint: a cobra CLI that loads a
// TOML config (config.Load), then starts or inspects the node it
// describes — the role the teacher's cmd/erigon main.go plays for
// erigon's own node process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aionnetwork/aion-lib/log"

	"github.com/aionnetwork/go-aion/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "gaion",
		Short: "go-aion node",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(runCmd())
	root.AddCommand(configInitCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func runCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "start the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}

			n, err := newNode(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := n.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return n.Stop()
		},
	}
	cmd.Flags().StringVar(&dataDir, "datadir", "", "override the config file's data directory")
	return cmd
}

func configInitCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "config-init",
		Short: "write a default config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(out, config.Default())
		},
	}
	cmd.Flags().StringVar(&out, "out", "config.toml", "output path")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the node version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gaion devnet")
		},
	}
}
