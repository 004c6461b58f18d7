// Copyright 2024 The go-aion Authors
// This file is part of go-aion.
//
// go-aion is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads cmd/gaion's node configuration from a TOML file,
// the way the teacher's cmd/erigon layers a flag-bound struct on top of
// a config file on disk. Every field has a zero-config default so a
// bare `gaion run` with no file at all still starts a single-node
// instance.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/aionnetwork/aion-lib/common"
)

// Network holds the peer-transport settings a TOML file can override,
// kept independent of p2p's NodeID/TokenRules wire types. cmd/gaion
// copies ListenAddr, MaxPeers, NetworkID and LocalPort into a
// p2p.Config; BootNodes and SyncFromBootNodesOnly are decoded but not
// read by cmd/gaion.
type Network struct {
	ListenAddr            string   `toml:"listen_addr"`
	MaxPeers              int      `toml:"max_peers"`
	NetworkID             uint32   `toml:"network_id"`
	LocalPort             uint16   `toml:"local_port"`
	BootNodes             []string `toml:"boot_nodes"`
	SyncFromBootNodesOnly bool     `toml:"sync_from_boot_nodes_only"`
}

// Miner holds the block-template fields spec §4.8's Miner needs: who to
// credit, what extra data to stamp, and the gas-limit band the next
// block's GasLimit is allowed to float within.
type Miner struct {
	Enabled   bool           `toml:"enabled"`
	Author    common.Address `toml:"author"`
	ExtraData string         `toml:"extra_data"`
	GasFloor  uint64         `toml:"gas_floor"`
	GasCeil   uint64         `toml:"gas_ceil"`
}

// Config is the complete node configuration, unmarshalled from TOML and
// then overlaid with cobra flag values by cmd/gaion.
type Config struct {
	DataDir  string  `toml:"data_dir"`
	LogLevel string  `toml:"log_level"`
	Network  Network `toml:"network"`
	Miner    Miner   `toml:"miner"`
}

// Default returns the configuration a freshly installed node runs with:
// a local data directory, mainnet's default peer count and gas band,
// and mining disabled (Miner.Enabled is false).
func Default() Config {
	return Config{
		DataDir:  "./gaion-data",
		LogLevel: "info",
		Network: Network{
			ListenAddr: "0.0.0.0:30303",
			MaxPeers:   64,
			NetworkID:  256,
			LocalPort:  30303,
		},
		Miner: Miner{
			GasFloor: 10_000_000,
			GasCeil:  20_000_000,
		},
	}
}

// Load reads path and unmarshals it over Default(), so a config file
// only has to name the fields it overrides. A missing file is not an
// error: it yields Default() unchanged, matching a first-run node that
// has not written one yet.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, used by `gaion config-init` to drop
// a starting file a node operator can then edit.
func Save(path string, cfg Config) error {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
