// Copyright (c) 2026 The DSD Nexus Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of nexus-core.
//
// nexus-core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nexus-core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with nexus-core.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dsdnexus/nexus-core/vfs"
)

func loadConfig() (vfs.Config, error) {
	if configPath == "" {
		return vfs.Config{}, fmt.Errorf("--config is required")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return vfs.Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg vfs.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return vfs.Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.SourceDir == "" {
		return vfs.Config{}, fmt.Errorf("config: source_dir is required")
	}
	return cfg, nil
}

func openOverlay() (*vfs.Overlay, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return vfs.NewOverlay(cfg), nil
}
