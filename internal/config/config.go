package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"png2lvgl/internal/imgconv"
)

type Options struct {
	Format       string `long:"format" env:"PNG2LVGL_FORMAT" description:"Target color format (RGB565A8, RGB565, ARGB8565, RGB888, ARGB8888, XRGB8888, L8, A8)"`
	Background   string `long:"background" env:"PNG2LVGL_BACKGROUND" description:"Background color for flattening transparency, e.g. #ffffff"`
	NoDither     bool   `long:"no-dither" env:"PNG2LVGL_NO_DITHER" description:"Disable ordered dithering when reducing to RGB565"`
	Dither       bool   `long:"dither" env:"PNG2LVGL_DITHER" description:"Force ordered dithering on, overriding a saved --no-dither default"`
	Compress     string `long:"compress" env:"PNG2LVGL_COMPRESS" description:"Array compression: none, rle or lz4"`
	KeepGoing    bool   `long:"keep-going" env:"PNG2LVGL_KEEP_GOING" description:"Convert remaining files after a failure and report all errors"`
	Watch        bool   `long:"watch" env:"PNG2LVGL_WATCH" description:"Re-run the conversion whenever a PNG in src_dir changes"`
	Debug        bool   `long:"debug" env:"PNG2LVGL_DEBUG" description:"Enable verbose debug output"`
	LogFile      bool   `long:"log-file" env:"PNG2LVGL_LOG_FILE" description:"Also write a JSONL log under the user cache directory"`
	SaveDefaults bool   `long:"save-defaults" description:"Store format, background, dither and compression as defaults for later runs"`

	Args struct {
		SrcDir string `positional-arg-name:"src_dir" description:"Directory containing .png files"`
		DstDir string `positional-arg-name:"dst_dir" description:"Output directory for .c files (created if missing)"`
	} `positional-args:"yes" required:"yes"`

	// ditherSet records that dithering was chosen by flag or environment, so
	// saved defaults must not override it.
	ditherSet bool
}

// Conversion is the parsed form of the conversion-related options.
type Conversion struct {
	Decode   imgconv.DecodeOptions
	Compress imgconv.Compression
}

// ParseOptions loads .env (if present) and parses args. A nil args slice
// parses os.Args[1:].
func ParseOptions(args []string) (Options, error) {
	_ = godotenv.Load()
	opts := Options{}
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "png2lvgl"
	parser.ShortDescription = "Convert PNGs to LVGL RGB565 C arrays"
	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		return Options{}, err
	}
	if err := resolveDitherChoice(parser, &opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// resolveDitherChoice folds --dither into NoDither. Command-line flags beat
// environment variables; either marks the choice as explicit.
func resolveDitherChoice(parser *flags.Parser, opts *Options) error {
	ditherFlag := parser.FindOptionByLongName("dither")
	noDitherFlag := parser.FindOptionByLongName("no-dither")
	_, ditherEnv := os.LookupEnv(ditherFlag.EnvKeyWithNamespace())
	_, noDitherEnv := os.LookupEnv(noDitherFlag.EnvKeyWithNamespace())

	switch {
	case ditherFlag.IsSet() && noDitherFlag.IsSet():
		return &flags.Error{Type: flags.ErrInvalidChoice, Message: "--dither and --no-dither cannot be combined"}
	case ditherFlag.IsSet():
		opts.NoDither = false
	case noDitherFlag.IsSet():
		opts.NoDither = true
	case ditherEnv && opts.Dither:
		opts.NoDither = false
	case noDitherEnv:
	default:
		return nil
	}
	opts.ditherSet = true
	return nil
}

// IsHelp reports whether err is go-flags' --help sentinel; its message is the
// rendered usage text.
func IsHelp(err error) bool {
	var flagErr *flags.Error
	return errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp
}

func ValidateRequired(opts Options) error {
	if strings.TrimSpace(opts.Args.SrcDir) == "" {
		return errors.New("source directory is required")
	}
	if strings.TrimSpace(opts.Args.DstDir) == "" {
		return errors.New("destination directory is required")
	}
	_, err := ResolveConversion(opts)
	return err
}

func ResolveConversion(opts Options) (Conversion, error) {
	format, err := imgconv.ParseColorFormat(opts.Format)
	if err != nil {
		return Conversion{}, fmt.Errorf("--format: %w", err)
	}
	background, err := imgconv.ParseColor(opts.Background)
	if err != nil {
		return Conversion{}, fmt.Errorf("--background: %w", err)
	}
	compress, err := imgconv.ParseCompression(opts.Compress)
	if err != nil {
		return Conversion{}, fmt.Errorf("--compress: %w", err)
	}
	return Conversion{
		Decode: imgconv.DecodeOptions{
			Format:     format,
			Background: background,
			Dither:     !opts.NoDither,
		},
		Compress: compress,
	}, nil
}
