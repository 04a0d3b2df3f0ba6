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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/openembed/fatmount/pkg/fat32"
	"github.com/openembed/fatmount/pkg/mbr"
)

var probePartition int

var probeCmd = &cobra.Command{
	Use:   "probe <IMAGE>",
	Short: "Probe the FAT32 volume in a disk image.",
	Example: `# Probe the whole image as one volume
$ fatctl probe volume.img

# Probe the second MBR partition
$ fatctl probe disk.img --partition 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		return probeMain(args[0])
	},
}

func init() {
	probeCmd.PersistentFlags().IntVarP(&probePartition, "partition", "", -1,
		"Probe the volume in this MBR partition slot (0-3)")
}

func probeMain(image string) error {
	file, err := os.Open(image)
	if err != nil {
		return err
	}
	defer file.Close()

	if probePartition >= 0 {
		partTable, err := mbr.Probe(file)
		if err != nil {
			return err
		}
		part, found := partTable.Entry(probePartition)
		if !found {
			return fmt.Errorf("no partition in slot %v", probePartition)
		}
		if _, err := file.Seek(int64(part.FirstLBA)*512, io.SeekStart); err != nil {
			return err
		}
	}

	fs, err := fat32.Probe(file)
	if err != nil {
		return err
	}

	fmt.Printf("Type:     %v\n", fs.Type())
	fmt.Printf("Serial:   %v\n", fs.ID())
	fmt.Printf("Label:    %v\n", strings.TrimRight(fs.Label(), " "))
	fmt.Printf("Total:    %v\n", humanize.IBytes(fs.TotalCapacity()))
	fmt.Printf("Free:     %v\n", humanize.IBytes(fs.FreeCapacity()))
	fmt.Printf("Cluster:  %v\n", humanize.IBytes(fs.ClusterSize()))
	return nil
}
