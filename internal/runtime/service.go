package runtime

import (
	"context"
	"fmt"
	"io"

	"png2lvgl/internal/config"
	"png2lvgl/internal/imgconv"
	"png2lvgl/internal/logging"
	"png2lvgl/internal/transcode"
)

type Service interface {
	RunContext(ctx context.Context) error
}

type StartHooks struct {
	OnConverted func(source string, output string)
	OnBatch     func(transcode.Result, error)
	// Stdout receives the per-file confirmation lines; nil means os.Stdout.
	Stdout io.Writer
}

func NewService(opts config.Options, logger *logging.Logger) (Service, error) {
	return NewServiceWithHooks(opts, logger, StartHooks{})
}

func NewServiceWithHooks(opts config.Options, logger *logging.Logger, hooks StartHooks) (Service, error) {
	if logger == nil {
		panic("runtime.NewServiceWithHooks: logger must not be nil")
	}
	if err := config.ValidateRequired(opts); err != nil {
		return nil, err
	}
	conversion, err := config.ResolveConversion(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved conversion settings",
		logging.Field("src_dir", opts.Args.SrcDir),
		logging.Field("dst_dir", opts.Args.DstDir),
		logging.Field("format", conversion.Decode.Format.LVGLName()),
		logging.Field("format_id", fmt.Sprintf("0x%02x", conversion.Decode.Format.ID())),
		logging.Field("background", imgconv.FormatColor(conversion.Decode.Background)),
		logging.Field("dither", conversion.Decode.Dither),
		logging.Field("compress", conversion.Compress),
		logging.Field("watch", opts.Watch),
	)

	transcoder := transcode.New(transcode.Options{
		SourceDir: opts.Args.SrcDir,
		DestDir:   opts.Args.DstDir,
		Decode:    conversion.Decode,
		Compress:  conversion.Compress,
		KeepGoing: opts.KeepGoing,
		Stdout:    hooks.Stdout,
	}, nil, logger, transcode.Callbacks{
		OnConverted: hooks.OnConverted,
		OnBatch:     hooks.OnBatch,
	})
	return &service{transcoder: transcoder, watch: opts.Watch}, nil
}

type service struct {
	transcoder *transcode.Transcoder
	watch      bool
}

// RunContext converts the batch once, or keeps watching the source directory
// until ctx is canceled when watch mode is on.
func (s *service) RunContext(ctx context.Context) error {
	if s.watch {
		return s.transcoder.Watch(ctx)
	}
	_, err := s.transcoder.ConvertAll(ctx)
	return err
}
