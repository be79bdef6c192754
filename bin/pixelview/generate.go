package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pixelview/internal/config"
	"pixelview/internal/pixelbuf"
	"pixelview/internal/report"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var FileExistsError = errors.New("file already exists")

func newGenCanvasCmd() *cobra.Command {
	var width, height int
	var alpha uint8

	cmd := &cobra.Command{
		Use:   "gencanvas <out> <red> <green> <blue>",
		Short: "Write a solid colour image",
		Long: `Writes a width x height canvas of one colour. The file is RGBA when --alpha
is given and RGB otherwise. A .png extension writes PNG, anything else the raw
container. An existing file is never overwritten.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := args[0]
			if width <= 0 || height <= 0 {
				return xerrors.Errorf("invalid canvas size %dx%d", width, height)
			}

			color := make([]byte, 0, 4)
			for i, name := range []string{"red", "green", "blue"} {
				v, err := strconv.ParseUint(args[i+1], 10, 8)
				if err != nil {
					return xerrors.Errorf("invalid %s component %q: %w", name, args[i+1], err)
				}
				color = append(color, byte(v))
			}

			format := pixelbuf.RGB
			if cmd.Flags().Changed("alpha") {
				format = pixelbuf.RGBA
				color = append(color, alpha)
			}

			b, err := pixelbuf.NewFilled(width, height, format, color)
			if err != nil {
				return err
			}

			encoding := report.RawEncoding
			if strings.EqualFold(filepath.Ext(out), ".png") {
				encoding = report.PNGEncoding
			}
			data, _, err := report.Encode(b, encoding)
			if err != nil {
				return err
			}

			if err := writeNew(out, data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "DONE")
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 320, "Canvas width")
	cmd.Flags().IntVar(&height, "height", 240, "Canvas height")
	cmd.Flags().Uint8Var(&alpha, "alpha", 0xFF, "Alpha component [0-255], makes the canvas RGBA")

	return cmd
}

func newGenConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genconfig <dir>",
		Short: "Write the default colour configuration into dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(args[0], config.DefaultFileName)
			if err := config.Default().Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return xerrors.Errorf("%s: %w", path, FileExistsError)
	}
	if err != nil {
		return xerrors.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return xerrors.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
