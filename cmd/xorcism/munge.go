package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/xorcism-go/internal/dao"
	"github.com/xorcism-go/internal/pipeline"
	"github.com/xorcism-go/internal/remote"
	"github.com/xorcism-go/internal/xorcism"
)

var mungeCommand = &cli.Command{
	Name:  "munge",
	Usage: "Munge a file or stdin with a repeating key",
	Description: `Munging is its own inverse: running the output through the same key
from the same offset restores the input. With --codec the plaintext is
compressed before munging, and --decode reverses both steps.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "in",
			Aliases: []string{"i"},
			Usage:   "Input `FILE` (default: stdin)",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Output `FILE` (default: stdout)",
		},
		&cli.StringFlag{
			Name:    "key",
			Aliases: []string{"k"},
			Usage:   "Key `MATERIAL`, decoded per --key-source",
			EnvVars: []string{"XORCISM_KEY"},
		},
		&cli.StringFlag{
			Name:  "key-source",
			Usage: "How --key is decoded `KIND` (raw, hex, base64, passphrase)",
		},
		&cli.StringFlag{
			Name:    "key-name",
			Aliases: []string{"n"},
			Usage:   "Use the stored key `NAME` instead of --key",
		},
		&cli.Uint64Flag{
			Name:  "offset",
			Usage: "Start the key phase at byte `N` of the stream",
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "Compression `CODEC` applied before munging (none, zstd, lz4)",
		},
		&cli.BoolFlag{
			Name:    "decode",
			Aliases: []string{"d"},
			Usage:   "Unmunge then decompress",
		},
		&cli.IntFlag{
			Name:  "stage-size",
			Usage: "Bytes munged per staging block `N`",
		},
		&cli.StringFlag{
			Name:    "remote",
			Usage:   "Munge through the server at `URL` using --key-name",
			EnvVars: []string{"XORCISM_REMOTE"},
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer `TOKEN` for --remote",
			EnvVars: []string{"XORCISM_TOKEN"},
		},
		&cli.BoolFlag{
			Name:  "h2c",
			Usage: "Use HTTP/2 cleartext for --remote",
		},
	},
	Action: mungeCmd,
}

func mungeCmd(c *cli.Context) error {
	cfg := configFrom(c)

	codecName := cfg.Munger.DefaultCodec
	if c.IsSet("codec") {
		codecName = c.String("codec")
	}
	codec, err := pipeline.ParseCodec(codecName)
	if err != nil {
		return err
	}

	stageSize := cfg.Munger.StageSize
	if c.IsSet("stage-size") {
		stageSize = c.Int("stage-size")
	}
	if stageSize <= 0 {
		return fmt.Errorf("--stage-size must be positive, got %d", stageSize)
	}

	key, keyName, remoteURL := c.String("key"), c.String("key-name"), c.String("remote")
	switch {
	case remoteURL != "" && keyName == "":
		return errors.New("--remote needs --key-name")
	case key != "" && keyName != "":
		return errors.New("use either --key or --key-name, not both")
	case key == "" && keyName == "":
		return errors.New("a key is required: pass --key or --key-name")
	}

	in, closeIn, err := openInput(c)
	if err != nil {
		return err
	}
	defer closeIn()

	out, closeOut, err := openOutput(c)
	if err != nil {
		return err
	}

	offset := c.Uint64("offset")
	var n int64
	if remoteURL != "" {
		n, err = mungeRemote(c, in, out, remote.MungeOptions{
			Offset: offset,
			Codec:  string(codec),
			Decode: c.Bool("decode"),
		})
	} else {
		var m *xorcism.Munger
		m, err = localMunger(c, offset)
		if err == nil {
			if c.Bool("decode") {
				n, err = pipeline.Decode(out, in, m, codec)
			} else {
				n, err = pipeline.Encode(out, in, m, codec, xorcism.WithStageSize(stageSize))
			}
		}
	}

	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Debug().Int64("bytes", n).Uint64("offset", offset).Str("codec", string(codec)).
		Bool("decode", c.Bool("decode")).Msg("Munge complete")
	return nil
}

// localMunger builds a munger from --key or from the key store
func localMunger(c *cli.Context, offset uint64) (*xorcism.Munger, error) {
	cfg := configFrom(c)

	if name := c.String("key-name"); name != "" {
		store, err := openStore(cfg)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return dao.NewKeyDAO(store, nil).NewMunger(name, offset)
	}

	source := cfg.Munger.DefaultSource
	if c.IsSet("key-source") {
		source = c.String("key-source")
	}
	return xorcism.NewFromSource(xorcism.SourceKind(source), c.String("key"), offset)
}

func mungeRemote(c *cli.Context, in io.Reader, out io.Writer, opts remote.MungeOptions) (int64, error) {
	client, err := remote.NewClient(remote.Options{
		BaseURL:   c.String("remote"),
		Token:     c.String("token"),
		EnableH2C: c.Bool("h2c"),
	})
	if err != nil {
		return 0, err
	}
	return client.Munge(c.Context, c.String("key-name"), in, out, opts)
}

func openInput(c *cli.Context) (io.Reader, func(), error) {
	path := c.String("in")
	if path == "" || path == "-" {
		return c.App.Reader, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openOutput(c *cli.Context) (io.Writer, func() error, error) {
	path := c.String("out")
	if path == "" || path == "-" {
		return c.App.Writer, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
