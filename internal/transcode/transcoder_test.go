package transcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"png2lvgl/internal/imgconv"
	"png2lvgl/internal/logging"
)

func writeTestPNG(t *testing.T, path string, fill color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func quietLogger() *logging.Logger {
	return logging.New(io.Discard)
}

func newTestTranscoder(t *testing.T, src string, dst string, stdout *bytes.Buffer, keepGoing bool) *Transcoder {
	t.Helper()
	return New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DefaultDecodeOptions(),
		KeepGoing: keepGoing,
		LockDir:   t.TempDir(),
		Stdout:    stdout,
	}, nil, quietLogger(), Callbacks{})
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestConvertAll_WritesOneCFilePerPNG(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTestPNG(t, filepath.Join(src, "b.png"), color.NRGBA{G: 0xFF, A: 0xFF})
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})
	writeTestPNG(t, filepath.Join(src, "upper.PNG"), color.NRGBA{B: 0xFF, A: 0xFF})
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(src, "dir.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var stdout bytes.Buffer
	result, err := newTestTranscoder(t, src, dst, &stdout, false).ConvertAll(context.Background())
	if err != nil {
		t.Fatalf("ConvertAll() error = %v", err)
	}
	if len(result.Outputs) != 2 || len(result.Failed) != 0 {
		t.Fatalf("ConvertAll() result = %#v", result)
	}

	got := dirNames(t, dst)
	if strings.Join(got, ",") != "a.c,b.c" {
		t.Fatalf("destination entries = %v, want [a.c b.c]", got)
	}
	want := "Converted a.png → a.c\nConverted b.png → b.c\n"
	if stdout.String() != want {
		t.Fatalf("stdout = %q, want %q", stdout.String(), want)
	}

	data, err := os.ReadFile(filepath.Join(dst, "a.c"))
	if err != nil {
		t.Fatalf("read a.c: %v", err)
	}
	text := string(data)
	for _, fragment := range []string{"uint8_t a_map[]", "const lv_image_dsc_t a = {", "LV_COLOR_FORMAT_RGB565A8", ".header.w = 3", ".header.h = 2"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("a.c missing %q:\n%s", fragment, text)
		}
	}
}

func TestConvertAll_IsIdempotent(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "icon.png"), color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0x78})

	transcoder := newTestTranscoder(t, src, dst, &bytes.Buffer{}, false)
	if _, err := transcoder.ConvertAll(context.Background()); err != nil {
		t.Fatalf("first ConvertAll() error = %v", err)
	}
	first, err := os.ReadFile(filepath.Join(dst, "icon.c"))
	if err != nil {
		t.Fatalf("read first output: %v", err)
	}
	if _, err := transcoder.ConvertAll(context.Background()); err != nil {
		t.Fatalf("second ConvertAll() error = %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dst, "icon.c"))
	if err != nil {
		t.Fatalf("read second output: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("second run changed icon.c")
	}
	if got := dirNames(t, dst); len(got) != 1 {
		t.Fatalf("destination entries = %v, want only icon.c", got)
	}
}

func TestConvertAll_MissingSourceIsInvalidInput(t *testing.T) {
	root := t.TempDir()
	dst := filepath.Join(root, "out")
	var stdout bytes.Buffer

	_, err := newTestTranscoder(t, filepath.Join(root, "missing"), dst, &stdout, false).ConvertAll(context.Background())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ConvertAll() error = %v, want ErrInvalidInput", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatalf("destination created for missing source: %v", statErr)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", stdout.String())
	}
}

func TestConvertAll_SourceFileIsInvalidInput(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.png")
	writeTestPNG(t, file, color.NRGBA{A: 0xFF})

	_, err := newTestTranscoder(t, file, filepath.Join(root, "out"), &bytes.Buffer{}, false).ConvertAll(context.Background())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("ConvertAll() error = %v, want ErrInvalidInput", err)
	}
}

func TestConvertAll_EmptySourceSucceedsAndCreatesDestination(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "nested", "deeper")

	var logs bytes.Buffer
	logger := logging.New(&logs)
	var stdout bytes.Buffer
	transcoder := New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DefaultDecodeOptions(),
		LockDir:   t.TempDir(),
		Stdout:    &stdout,
	}, nil, logger, Callbacks{})

	result, err := transcoder.ConvertAll(context.Background())
	if err != nil {
		t.Fatalf("ConvertAll() error = %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("ConvertAll() sources = %v, want none", result.Sources)
	}
	if info, statErr := os.Stat(dst); statErr != nil || !info.IsDir() {
		t.Fatalf("destination not created: %v", statErr)
	}
	if got := dirNames(t, dst); len(got) != 0 {
		t.Fatalf("destination entries = %v, want none", got)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout = %q, want empty", stdout.String())
	}
	if !strings.Contains(logs.String(), "No PNGs found") {
		t.Fatalf("missing empty-input diagnostic: %q", logs.String())
	}
}

func TestConvertAll_FailFastStopsAtFirstBadFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})
	if err := os.WriteFile(filepath.Join(src, "b.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write corrupt png: %v", err)
	}
	writeTestPNG(t, filepath.Join(src, "c.png"), color.NRGBA{B: 0xFF, A: 0xFF})

	var stdout bytes.Buffer
	result, err := newTestTranscoder(t, src, dst, &stdout, false).ConvertAll(context.Background())
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("ConvertAll() error = %v, want *ConversionError", err)
	}
	if filepath.Base(convErr.Source) != "b.png" {
		t.Fatalf("ConversionError.Source = %q, want b.png", convErr.Source)
	}
	if !strings.Contains(err.Error(), "convert b.png") {
		t.Fatalf("error text = %q", err.Error())
	}
	if got := dirNames(t, dst); strings.Join(got, ",") != "a.c" {
		t.Fatalf("destination entries = %v, want [a.c]", got)
	}
	if len(result.Failed) != 1 || stdout.String() != "Converted a.png → a.c\n" {
		t.Fatalf("result = %#v stdout = %q", result, stdout.String())
	}
}

func TestConvertAll_KeepGoingConvertsTheRest(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})
	if err := os.WriteFile(filepath.Join(src, "b.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write corrupt png: %v", err)
	}
	writeTestPNG(t, filepath.Join(src, "c.png"), color.NRGBA{B: 0xFF, A: 0xFF})

	result, err := newTestTranscoder(t, src, dst, &bytes.Buffer{}, true).ConvertAll(context.Background())
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("ConvertAll() error = %v, want *ConversionError", err)
	}
	if got := dirNames(t, dst); strings.Join(got, ",") != "a.c,c.c" {
		t.Fatalf("destination entries = %v, want [a.c c.c]", got)
	}
	if len(result.Outputs) != 2 || len(result.Failed) != 1 {
		t.Fatalf("ConvertAll() result = %#v", result)
	}
}

type failingCodec struct {
	imgconv.Codec
	failOn string
}

func (c failingCodec) Serialize(img *imgconv.Image, path string, opts imgconv.SerializeOptions) (imgconv.Compression, error) {
	if filepath.Base(path) == c.failOn {
		return opts.Compress, errors.New("disk full")
	}
	return c.Codec.Serialize(img, path, opts)
}

func TestConvertAll_SerializeFailureIsConversionError(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})

	var batches int
	transcoder := New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DefaultDecodeOptions(),
		LockDir:   t.TempDir(),
		Stdout:    &bytes.Buffer{},
	}, failingCodec{failOn: "a.c"}, quietLogger(), Callbacks{
		OnBatch: func(_ Result, err error) {
			batches++
			if err == nil {
				t.Errorf("OnBatch() error = nil, want failure")
			}
		},
	})

	_, err := transcoder.ConvertAll(context.Background())
	var convErr *ConversionError
	if !errors.As(err, &convErr) || convErr.Err.Error() != "disk full" {
		t.Fatalf("ConvertAll() error = %v, want wrapped disk full", err)
	}
	if batches != 1 {
		t.Fatalf("OnBatch calls = %d, want 1", batches)
	}
}

func TestConvertAll_BusyDestination(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	lockDir := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})

	resolved, err := ResolveDir(dst)
	if err != nil {
		t.Fatalf("ResolveDir() error = %v", err)
	}
	held, err := acquireDestLock(lockDir, resolved)
	if err != nil {
		t.Fatalf("acquireDestLock() error = %v", err)
	}
	defer func() {
		_ = held.Release()
	}()

	transcoder := New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DefaultDecodeOptions(),
		LockDir:   lockDir,
		Stdout:    &bytes.Buffer{},
	}, nil, quietLogger(), Callbacks{})
	if _, err := transcoder.ConvertAll(context.Background()); !errors.Is(err, ErrDestinationBusy) {
		t.Fatalf("ConvertAll() error = %v, want ErrDestinationBusy", err)
	}
	if got := dirNames(t, dst); len(got) != 0 {
		t.Fatalf("destination entries = %v, want none", got)
	}

	if err := held.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := transcoder.ConvertAll(context.Background()); err != nil {
		t.Fatalf("ConvertAll() after release error = %v", err)
	}
}

func TestConvertAll_CanceledContextStopsBatch(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestTranscoder(t, src, dst, &bytes.Buffer{}, false).ConvertAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ConvertAll() error = %v, want context.Canceled", err)
	}
}

func TestConvertAll_CompressedOutputSetsFlag(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "flat.png"), color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF})

	transcoder := New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DecodeOptions{Format: imgconv.RGB565, Background: imgconv.DefaultBackground},
		Compress:  imgconv.CompressRLE,
		LockDir:   t.TempDir(),
		Stdout:    &bytes.Buffer{},
	}, nil, quietLogger(), Callbacks{})
	if _, err := transcoder.ConvertAll(context.Background()); err != nil {
		t.Fatalf("ConvertAll() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "flat.c"))
	if err != nil {
		t.Fatalf("read flat.c: %v", err)
	}
	if !strings.Contains(string(data), "LV_IMAGE_FLAGS_COMPRESSED") {
		t.Fatalf("flat.c missing compressed flag:\n%s", data)
	}
}

func TestConvertAll_UnusableLockDirStillConverts(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTestPNG(t, filepath.Join(src, "a.png"), color.NRGBA{R: 0xFF, A: 0xFF})
	blocker := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	var logs bytes.Buffer
	transcoder := New(Options{
		SourceDir: src,
		DestDir:   dst,
		Decode:    imgconv.DefaultDecodeOptions(),
		LockDir:   filepath.Join(blocker, "locks"),
		Stdout:    &bytes.Buffer{},
	}, nil, logging.New(&logs), Callbacks{})

	if _, err := transcoder.ConvertAll(context.Background()); err != nil {
		t.Fatalf("ConvertAll() error = %v", err)
	}
	if got := dirNames(t, dst); strings.Join(got, ",") != "a.c" {
		t.Fatalf("destination entries = %v, want [a.c]", got)
	}
	if !strings.Contains(logs.String(), "converting without destination lock") {
		t.Fatalf("missing lock warning: %q", logs.String())
	}
}
