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

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:                   "ls PATH",
	Short:                 "List a virtual directory",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ov, err := openOverlay()
		if err != nil {
			return err
		}
		defer ov.Close()

		entries, err := ov.ReadDir(args[0])
		if err != nil {
			return fmt.Errorf("ls %s: %w", args[0], err)
		}
		for _, e := range entries {
			if e.IsDir {
				fmt.Printf("%s/\n", e.Name)
			} else {
				fmt.Printf("%10d  %s\n", e.Size, e.Name)
			}
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(lsCmd) }
