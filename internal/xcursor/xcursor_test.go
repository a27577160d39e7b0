package xcursor

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// encode builds an Xcursor file holding one image per size.
func encode(sizes ...int) []byte {
	le := binary.LittleEndian
	header := make([]byte, fileHeaderLen)
	copy(header, magic)
	le.PutUint32(header[4:], fileHeaderLen)
	le.PutUint32(header[8:], 0x10000)
	le.PutUint32(header[12:], uint32(len(sizes)))

	toc := make([]byte, tocEntryLen*len(sizes))
	var chunks []byte
	pos := fileHeaderLen + len(toc)
	for i, size := range sizes {
		le.PutUint32(toc[i*tocEntryLen:], chunkImage)
		le.PutUint32(toc[i*tocEntryLen+4:], uint32(size))
		le.PutUint32(toc[i*tocEntryLen+8:], uint32(pos+len(chunks)))

		c := make([]byte, imageHeader+4*size*size)
		le.PutUint32(c[0:], imageHeader)
		le.PutUint32(c[4:], chunkImage)
		le.PutUint32(c[8:], uint32(size))
		le.PutUint32(c[12:], 1)
		le.PutUint32(c[16:], uint32(size))
		le.PutUint32(c[20:], uint32(size))
		le.PutUint32(c[24:], uint32(size/4))
		le.PutUint32(c[28:], uint32(size/2))
		for p := 0; p < size*size; p++ {
			le.PutUint32(c[imageHeader+4*p:], 0xff000000|uint32(size))
		}
		chunks = append(chunks, c...)
	}
	out := append(header, toc...)
	return append(out, chunks...)
}

func TestDecode_ReadsAllImages(t *testing.T) {
	images, err := Decode(encode(24, 48))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(images))
	}
	im := images[1]
	if im.Width != 48 || im.XHot != 12 || im.YHot != 24 || im.Pixels[0] != 0xff000030 {
		t.Fatalf("unexpected image %+v", im)
	}
	if best := Best(images, 40); best.Size != 48 {
		t.Fatalf("expected 48 to be closest to 40, got %d", best.Size)
	}
	if best := Best(images, 30); best.Size != 24 {
		t.Fatalf("expected 24 to be closest to 30, got %d", best.Size)
	}
}

func TestDecode_RejectsCorruptFiles(t *testing.T) {
	good := encode(8)
	cases := map[string][]byte{
		"magic":     append([]byte("Xcux"), good[4:]...),
		"truncated": good[:len(good)-10],
		"short":     good[:8],
	}
	for name, data := range cases {
		if _, err := Decode(data); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestImage_FitScalesHotspot(t *testing.T) {
	images, err := Decode(encode(128))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	fit := images[0].Fit(64)
	if fit.Width != 64 || fit.Height != 64 {
		t.Fatalf("expected 64x64, got %dx%d", fit.Width, fit.Height)
	}
	if fit.XHot != 16 || fit.YHot != 32 {
		t.Fatalf("unexpected hotspot %d,%d", fit.XHot, fit.YHot)
	}
	if fit.Pixels[0]>>24 != 0xff {
		t.Fatalf("expected opaque pixels after scaling, got %#x", fit.Pixels[0])
	}
	small := images[0].Fit(256)
	if small != &images[0] {
		t.Fatalf("expected image that fits to be returned as is")
	}
}

func TestTheme_FollowsInherits(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XCURSOR_PATH", root)

	mustWrite := func(path string, data []byte) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite(filepath.Join(root, "child", "index.theme"), []byte("[Icon Theme]\nInherits=child,base\n"))
	mustWrite(filepath.Join(root, "base", "cursors", "left_ptr"), encode(24))

	theme := LoadTheme("child")
	im, err := theme.Load(24, "missing", "left_ptr")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if im.Size != 24 {
		t.Fatalf("unexpected size %d", im.Size)
	}
	if _, err := theme.Load(24, "nothing"); err == nil {
		t.Fatalf("expected error for unknown cursor")
	}
}
