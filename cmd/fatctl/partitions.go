// This file is part of FATMount
// Copyright (c) 2025 The FATMount Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openembed/fatmount/pkg/mbr"
)

var partitionsCmd = &cobra.Command{
	Use:   "partitions <IMAGE>",
	Short: "List MBR partitions of a disk image.",
	Example: `# List partitions of an SD card image
$ fatctl partitions sd.img`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return partitionsMain(args[0])
	},
}

func familyName(family mbr.FATFamily) string {
	switch family {
	case mbr.FAT16:
		return "FAT16"
	case mbr.FAT32:
		return "FAT32"
	default:
		return color.HiYellowString("not FAT")
	}
}

func partitionsMain(image string) error {
	file, err := os.Open(image)
	if err != nil {
		return err
	}
	defer file.Close()

	partTable, err := mbr.Probe(file)
	if err != nil {
		if errors.Is(err, mbr.ErrNoPartitionTable) {
			fmt.Println(color.HiYellowString("no partition table found in %v", image))
			return nil
		}
		return err
	}

	parts := partTable.Partitions()
	if len(parts) == 0 {
		fmt.Println("no partitions")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"PARTITION", "TYPE", "FILESYSTEM", "START", "SIZE"})
	for _, part := range parts {
		t.AppendRow(table.Row{
			part.Number,
			fmt.Sprintf("%#02x", part.Type),
			familyName(part.Family),
			part.FirstLBA,
			humanize.IBytes(uint64(part.NumSectors) * 512),
		})
	}
	t.Render()
	return nil
}
