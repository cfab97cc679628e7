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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Inspect or edit a track's ID3 overlay",
}

var tagGetCmd = &cobra.Command{
	Use:                   "get PATH",
	Short:                 "Print the effective ID3 blob for a virtual track",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ov, err := openOverlay()
		if err != nil {
			return err
		}
		defer ov.Close()

		blob, err := ov.GetID3Tag(args[0])
		if err != nil {
			return fmt.Errorf("tag get %s: %w", args[0], err)
		}
		_, err = os.Stdout.Write(blob)
		return err
	},
}

var tagSetFromFile string

var tagSetCmd = &cobra.Command{
	Use:                   "set PATH",
	Short:                 "Replace a virtual track's ID3 overlay from --from-file",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tagSetFromFile == "" {
			return fmt.Errorf("tag set: --from-file is required")
		}
		blob, err := os.ReadFile(tagSetFromFile)
		if err != nil {
			return fmt.Errorf("tag set: %w", err)
		}

		ov, err := openOverlay()
		if err != nil {
			return err
		}
		defer ov.Close()

		if err := ov.SetID3Overlay(args[0], blob); err != nil {
			return fmt.Errorf("tag set %s: %w", args[0], err)
		}
		return ov.SaveID3(args[0])
	},
}

var tagClearCmd = &cobra.Command{
	Use:                   "clear PATH",
	Short:                 "Revert a virtual track to its original ID3 tag",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ov, err := openOverlay()
		if err != nil {
			return err
		}
		defer ov.Close()

		if err := ov.ClearID3Overlay(args[0]); err != nil {
			return fmt.Errorf("tag clear %s: %w", args[0], err)
		}
		return ov.SaveID3(args[0])
	},
}

func init() {
	tagSetCmd.Flags().StringVar(&tagSetFromFile, "from-file", "", "path to the raw ID3 blob to install (required)")
	tagCmd.AddCommand(tagGetCmd, tagSetCmd, tagClearCmd)
	rootCmd.AddCommand(tagCmd)
}
