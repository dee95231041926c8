package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"png2lvgl/internal/imgconv"
	"png2lvgl/internal/logging"
)

// Codec is the imaging facility: PNG decode plus C array serialization.
type Codec interface {
	Decode(path string, opts imgconv.DecodeOptions) (*imgconv.Image, error)
	Serialize(img *imgconv.Image, path string, opts imgconv.SerializeOptions) (imgconv.Compression, error)
}

type Options struct {
	SourceDir string
	DestDir   string
	Decode    imgconv.DecodeOptions
	Compress  imgconv.Compression
	// KeepGoing converts every file and joins the failures instead of
	// stopping at the first one.
	KeepGoing bool
	// LockDir holds destination lock files; empty uses the user cache dir.
	LockDir string
	// Stdout receives one confirmation line per converted file.
	Stdout io.Writer

	DebounceWindow   time.Duration
	RetryInterval    time.Duration
	RetryMaxInterval time.Duration
	RetryMaxTries    uint
}

type Callbacks struct {
	OnConverted func(source string, output string)
	OnBatch     func(Result, error)
}

type Result struct {
	SourceDir string
	DestDir   string
	Sources   []string
	Outputs   []string
	Failed    []string
}

type Transcoder struct {
	opts   Options
	codec  Codec
	logger *logging.Logger
	hooks  Callbacks
}

func New(opts Options, codec Codec, logger *logging.Logger, hooks Callbacks) *Transcoder {
	if logger == nil {
		panic("transcode.New: logger must not be nil")
	}
	if codec == nil {
		codec = imgconv.Codec{}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Transcoder{opts: opts, codec: codec, logger: logger, hooks: hooks}
}

// ConvertAll converts every PNG in the source directory into a C file in the
// destination directory. A missing source directory yields ErrInvalidInput.
// An empty source directory is not an error.
func (t *Transcoder) ConvertAll(ctx context.Context) (Result, error) {
	result, err := t.convertAll(ctx)
	if t.hooks.OnBatch != nil {
		t.hooks.OnBatch(result, err)
	}
	return result, err
}

func (t *Transcoder) convertAll(ctx context.Context) (Result, error) {
	srcDir, destDir, err := t.prepareDirs()
	if err != nil {
		return Result{}, err
	}
	result := Result{SourceDir: srcDir, DestDir: destDir}

	lock, err := acquireDestLock(t.opts.LockDir, destDir)
	if errors.Is(err, ErrDestinationBusy) {
		return result, err
	}
	if err != nil {
		t.logger.Warn("converting without destination lock", logging.Field("error", err))
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			t.logger.Warn("failed to release destination lock", logging.Field("error", releaseErr))
		}
	}()

	sources, err := FindSources(srcDir)
	if err != nil {
		return result, fmt.Errorf("list source directory: %w", err)
	}
	result.Sources = sources
	if len(sources) == 0 {
		t.logger.Warn("No PNGs found", logging.Field("dir", srcDir))
		return result, nil
	}

	t.logger.Debug("starting conversion batch",
		logging.Field("source_dir", srcDir),
		logging.Field("dest_dir", destDir),
		logging.Field("files", len(sources)),
		logging.Field("format", t.opts.Decode.Format),
		logging.Field("dither", t.opts.Decode.Dither),
		logging.Field("compress", t.opts.Compress),
	)

	var failures []error
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		output, convErr := t.convertOne(source, destDir)
		if convErr != nil {
			result.Failed = append(result.Failed, source)
			t.logger.Error("conversion failed",
				logging.Field("source", filepath.Base(source)),
				logging.Field("error", convErr.Err),
			)
			if !t.opts.KeepGoing {
				return result, convErr
			}
			failures = append(failures, convErr)
			continue
		}
		result.Outputs = append(result.Outputs, output)
		fmt.Fprintf(t.opts.Stdout, "Converted %s → %s\n", filepath.Base(source), filepath.Base(output))
		if t.hooks.OnConverted != nil {
			t.hooks.OnConverted(source, output)
		}
	}

	t.logger.Info("conversion finished",
		logging.Field("converted", len(result.Outputs)),
		logging.Field("failed", len(result.Failed)),
		logging.Field("progress", t.logger.ProgressLabel(len(result.Outputs), len(sources))),
	)
	return result, errors.Join(failures...)
}

func (t *Transcoder) prepareDirs() (string, string, error) {
	srcDir, err := ResolveDir(t.opts.SourceDir)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(srcDir)
	if err != nil || !info.IsDir() {
		return "", "", fmt.Errorf("%w: source directory %s does not exist", ErrInvalidInput, srcDir)
	}
	destDir, err := ResolveDir(t.opts.DestDir)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create destination directory: %w", err)
	}
	return srcDir, destDir, nil
}

func (t *Transcoder) convertOne(source string, destDir string) (string, *ConversionError) {
	output := OutputPath(destDir, source)
	img, err := t.codec.Decode(source, t.opts.Decode)
	if err != nil {
		return "", &ConversionError{Source: source, Err: err}
	}
	applied, err := t.codec.Serialize(img, output, imgconv.SerializeOptions{
		Name:     imgconv.CIdentifier(Stem(source)),
		Compress: t.opts.Compress,
	})
	if err != nil {
		return "", &ConversionError{Source: source, Err: err}
	}
	if applied != t.opts.Compress {
		t.logger.Warn("compression did not shrink image, stored uncompressed",
			logging.Field("source", filepath.Base(source)),
			logging.Field("requested", t.opts.Compress),
		)
	}
	t.logger.Debug("converted image",
		logging.Field("source", source),
		logging.Field("output", output),
		logging.Field("size", fmt.Sprintf("%dx%d", img.Width, img.Height)),
	)
	return output, nil
}
