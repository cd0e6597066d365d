package present

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/rhi"
)

type updater struct {
	data  []byte
	calls int
	err   error
}

func (u *updater) UpdateData(data []byte) error {
	u.calls++
	u.data = data
	return u.err
}

func TestDefaultSurfaceFormat(t *testing.T) {
	c := NewContext(nil)
	if got := c.SurfaceFormat(); got != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SurfaceFormat() = %v, want RGBA8Unorm", got)
	}
}

func TestCreateAndLookup(t *testing.T) {
	c := NewContext(nil)
	buf, err := c.CreateBuffer(16)
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	tex, err := c.CreateTexture(4, 2)
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	if buf == tex {
		t.Fatalf("names collide: %d", buf)
	}

	res, ok := c.Lookup(tex)
	if !ok {
		t.Fatal("Lookup(texture) failed")
	}
	if res.Kind != rhi.ExternalTexture || res.Width != 4 || res.Height != 2 || len(res.Memory) != 32 {
		t.Errorf("Lookup(texture) = %+v", res)
	}
	res, ok = c.Lookup(buf)
	if !ok || res.Kind != rhi.ExternalBuffer || len(res.Memory) != 16 {
		t.Errorf("Lookup(buffer) = %+v, %v", res, ok)
	}

	c.Delete(buf)
	if _, ok := c.Lookup(buf); ok {
		t.Error("deleted buffer still resolves")
	}
	c.Delete(buf)
}

func TestInvalidRequests(t *testing.T) {
	c := NewContext(nil)
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"zero buffer", func() error { _, err := c.CreateBuffer(0); return err }(), rhi.ErrZeroSize},
		{"zero texture", func() error { _, err := c.CreateTexture(0, 4); return err }(), rhi.ErrInvalidExtent},
		{"unknown read", func() error { _, err := c.ReadBuffer(99); return err }(), ErrUnknownName},
		{"unknown resize", c.Resize(99, 1, 1), ErrUnknownName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("got %v, want %v", tt.err, tt.want)
			}
		})
	}

	buf, _ := c.CreateBuffer(4)
	if _, err := c.ReadTexture(buf); !errors.Is(err, ErrNotTexture) {
		t.Errorf("ReadTexture(buffer) = %v", err)
	}
}

func TestResizeReplacesMemory(t *testing.T) {
	c := NewContext(nil)
	tex, _ := c.CreateTexture(2, 2)
	before, _ := c.Lookup(tex)
	before.Memory[0] = 0xff

	if err := c.Resize(tex, 8, 4); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	after, _ := c.Lookup(tex)
	if after.Width != 8 || after.Height != 4 || len(after.Memory) != 128 {
		t.Errorf("after resize: %+v", after)
	}
	if after.Memory[0] != 0 {
		t.Error("resize kept old contents")
	}
}

func TestPresentSwizzlesForBGRASurface(t *testing.T) {
	c := NewContext(nil)
	tex, _ := c.CreateTexture(1, 1)
	res, _ := c.Lookup(tex)
	copy(res.Memory, []byte{1, 2, 3, 4})

	var u updater
	if err := c.Present(tex, &u); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	if string(u.data) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("RGBA present = %v", u.data)
	}

	c.format = gputypes.TextureFormatBGRA8Unorm
	if err := c.Present(tex, &u); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	if string(u.data) != string([]byte{3, 2, 1, 4}) {
		t.Errorf("BGRA present = %v", u.data)
	}
	if res.Memory[0] != 1 {
		t.Error("present modified the texture")
	}

	u.err = errors.New("surface lost")
	if err := c.Present(tex, &u); err == nil {
		t.Error("updater error dropped")
	}
}
