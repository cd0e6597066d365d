package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/bindless"
)

func newSelftestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run a short end-to-end check against a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, dev, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = dev.Close() }()
			return selftest(cmd.OutOrStdout(), dev)
		},
	}
}

type check struct {
	name string
	run  func(dev rhi.Device, st *rhi.Stream) error
}

func selftest(w io.Writer, dev rhi.Device) error {
	st, err := rhi.NewStream(dev)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	checks := []check{
		{"buffer copy", checkBufferCopy},
		{"bindless dispatch", checkBindlessDispatch},
		{"texture round trip", checkTexture},
	}
	var failed int
	for _, c := range checks {
		if err := c.run(dev, st); err != nil {
			failed++
			fmt.Fprintf(w, "FAIL  %s: %v\n", c.name, err)
			continue
		}
		fmt.Fprintf(w, "ok    %s\n", c.name)
	}
	fmt.Fprint(w, dev.Stats().Report())
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

func checkBufferCopy(dev rhi.Device, st *rhi.Stream) error {
	src, err := dev.CreateBuffer(16, "selftest-src", false)
	if err != nil {
		return err
	}
	defer dev.DestroyBuffer(src)
	dst, err := dev.CreateBuffer(16, "selftest-dst", false)
	if err != nil {
		return err
	}
	defer dev.DestroyBuffer(dst)

	want := []byte("rhi selftest 123")
	got := make([]byte, len(want))
	st.Add(
		rhi.BufferUploadCommand{Buffer: src, Data: want, Async: true},
		rhi.BufferCopyCommand{Src: src, Dst: dst, Size: 16, Async: true},
		rhi.BufferDownloadCommand{Buffer: dst, Data: got},
	)
	if err := st.Commit(); err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("read back %q", got)
	}
	return nil
}

// checkBindlessDispatch doubles a buffer reached only through a bindless slot.
func checkBindlessDispatch(dev rhi.Device, st *rhi.Stream) error {
	const n = 64
	buf, err := dev.CreateBuffer(n*4, "selftest-data", false)
	if err != nil {
		return err
	}
	defer dev.DestroyBuffer(buf)

	arr, err := bindless.New(dev)
	if err != nil {
		return err
	}
	defer arr.Close()
	slot, err := arr.EmplaceBuffer(bindless.ByteBufferDesc{Buffer: buf, Size: n * 4})
	if err != nil {
		return err
	}

	sh, err := dev.CreateShader(rhi.Function{Name: "double", Kernel: func(inv rhi.Invocation) {
		mem := inv.BindlessBuffer(inv.Args()[0], slot)
		i := inv.ID()[0] * 4
		binary.LittleEndian.PutUint32(mem[i:], 2*binary.LittleEndian.Uint32(mem[i:]))
	}})
	if err != nil {
		return err
	}
	defer dev.DestroyShader(sh)

	in := make([]byte, n*4)
	for i := range n {
		binary.LittleEndian.PutUint32(in[i*4:], uint32(i))
	}
	out := make([]byte, n*4)
	st.AddList(arr.UpdateSlotSOA(true))
	st.Add(
		arr.UploadBufferHandles(true),
		rhi.BufferUploadCommand{Buffer: buf, Data: in, Async: true},
		rhi.ShaderDispatchCommand{Shader: sh, Args: []rhi.Handle{arr.Handle()}, Dim: [3]uint32{n, 1, 1}, Async: true},
		rhi.BufferDownloadCommand{Buffer: buf, Data: out},
	)
	if err := st.Commit(); err != nil {
		return err
	}
	for i := range n {
		if v := binary.LittleEndian.Uint32(out[i*4:]); v != uint32(2*i) {
			return fmt.Errorf("element %d = %d, want %d", i, v, 2*i)
		}
	}
	return nil
}

func checkTexture(dev rhi.Device, st *rhi.Stream) error {
	tex, err := dev.CreateTexture2D(32, 32, rhi.PixelByte4, 0, "selftest-texture")
	if err != nil {
		return err
	}
	defer dev.DestroyTexture2D(tex)
	info, _ := dev.TextureInfo(tex)

	px := make([]byte, info.ByteSize())
	for i := range px {
		px[i] = byte(i * 7)
	}
	got := make([]byte, len(px))
	st.Add(info.Upload(px, true), info.Download(got, false))
	if err := st.Commit(); err != nil {
		return err
	}
	if !bytes.Equal(got, px) {
		return fmt.Errorf("texels differ after round trip")
	}
	return nil
}
