package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/imageio"
)

func newTextureCmd(a *app) *cobra.Command {
	var (
		levels uint32
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "texture image",
		Short: "Load an image into a device texture with a mip chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := imageio.Load(args[0])
			if err != nil {
				return err
			}
			_, dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()

			w, h := uint32(img.Rect.Dx()), uint32(img.Rect.Dy())
			tex, err := dev.CreateTexture2D(w, h, rhi.PixelByte4, levels, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			defer dev.DestroyTexture2D(tex)
			info, _ := dev.TextureInfo(tex)

			chain := imageio.MipChain(img, info.Levels)
			uploads, err := imageio.UploadCommands(info, chain, true)
			if err != nil {
				return err
			}
			st, err := rhi.NewStream(dev)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			// read every level back from the device
			readback := make([]*image.RGBA, len(chain))
			st.Add(uploads...)
			for level, src := range chain {
				dst := image.NewRGBA(src.Rect)
				readback[level] = dst
				st.Add(rhi.TextureDownloadCommand{
					Texture: tex,
					Level:   uint32(level),
					Size:    rhi.Extent2D(uint32(src.Rect.Dx()), uint32(src.Rect.Dy())),
					Storage: rhi.PixelByte4,
					Data:    dst.Pix,
					Async:   true,
				})
			}
			if err := st.Synchronize(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %dx%d, %d levels, %d bytes on device\n",
				info.Label, w, h, info.Levels, dev.Stats().Bytes(rhi.TagTexture2D))
			if outDir == "" {
				return nil
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			for level, img := range readback {
				path := filepath.Join(outDir, fmt.Sprintf("level%02d.png", level))
				if err := imageio.SavePNG(path, img); err != nil {
					return err
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&levels, "levels", 0, "mip levels (0 for the full chain)")
	cmd.Flags().StringVar(&outDir, "out", "", "write each level read back from the device as PNG")
	return cmd
}
