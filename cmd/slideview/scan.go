package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"slideview/internal/log"
	"slideview/internal/scan"
	"slideview/pkg/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command
func NewScanCmd(opts *rootOptions) *cobra.Command {
	var withInfo bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan [directory]",
		Short: "List the images a slideshow of the folder would show",
		Long:  `Scan a folder for supported images and print their size, type and dimensions in slideshow order.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.targetDir(args)

			scanner, err := scan.New(
				scan.WithExtensions(opts.cfg.Formats.Extensions),
				scan.WithSniff(opts.cfg.Formats.Sniff),
			)
			if err != nil {
				return err
			}
			refs, err := scanner.Folder(dir)
			if err != nil {
				return err
			}

			infos := make([]*types.ImageInfo, 0, len(refs))
			for _, ref := range refs {
				info, err := scan.Info(ref.Path)
				if err != nil {
					log.LogWithError(err).Warn("Skipping unreadable image")
					continue
				}
				infos = append(infos, info)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s: %d images", dir, len(infos))))
			fmt.Fprintln(out, renderImageTable(infos, withInfo))
			fmt.Fprintln(out, mutedStyle.Render("Total "+humanize.Bytes(totalSize(infos))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withInfo, "info", false, "include EXIF metadata")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output results in JSON format")

	return cmd
}

func renderImageTable(infos []*types.ImageInfo, withInfo bool) string {
	headers := []string{"#", "Name", "Type", "Size", "Dimensions"}
	if withInfo {
		headers = append(headers, "Taken", "Camera", "Orientation")
	}

	rows := make([][]string, 0, len(infos))
	for i, info := range infos {
		row := []string{
			strconv.Itoa(i + 1),
			info.Name(),
			info.ContentType,
			humanize.Bytes(uint64(info.Size)),
			dimensions(info),
		}
		if withInfo {
			row = append(row,
				info.Metadata["DateTimeOriginal"],
				info.Metadata["CameraModel"],
				orientation(info.Orientation),
			)
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func dimensions(info *types.ImageInfo) string {
	if info.Width == 0 || info.Height == 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", info.Width, info.Height)
}

func orientation(o int) string {
	if o <= 1 {
		return "-"
	}
	return strconv.Itoa(o)
}

func totalSize(infos []*types.ImageInfo) uint64 {
	var total uint64
	for _, info := range infos {
		total += uint64(info.Size)
	}
	return total
}
