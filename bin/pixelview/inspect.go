package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"pixelview/internal/pixelbuf"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print the size, mode and source format of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := pixelbuf.Open(args[0])
			if err != nil {
				return err
			}

			info := b.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "-----------------------------------")
			fmt.Fprintf(out, "srcFileName:   %s\n", filepath.Base(info.SourcePath))
			fmt.Fprintf(out, "mode:          %s\n", info.Mode)
			fmt.Fprintf(out, "size:          %dx%d\n", info.Width, info.Height)
			fmt.Fprintf(out, "srcFileFormat: %s\n", info.SourceFormat)
			fmt.Fprintln(out, "-----------------------------------")
			return nil
		},
	}
}

func newPrintValCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "printval <file> <x> <y>",
		Short: "Print the channel values of one pixel in hex",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.Atoi(args[1])
			if err != nil {
				return xerrors.Errorf("invalid x coordinate %q: %w", args[1], err)
			}
			y, err := strconv.Atoi(args[2])
			if err != nil {
				return xerrors.Errorf("invalid y coordinate %q: %w", args[2], err)
			}

			b, err := pixelbuf.Open(args[0])
			if err != nil {
				return err
			}

			px, ok := b.PixelAt(x, y)
			if !ok {
				return xerrors.Errorf("(%d, %d) is outside the %dx%d image", x, y, b.Width, b.Height)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatHex(px))
			return nil
		},
	}
}

func formatHex(data []byte) string {
	parts := make([]string, len(data))
	for i, v := range data {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
