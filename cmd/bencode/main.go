// Command bencode inspects and rewrites bencode documents, such as
// .torrent files.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/kr/pretty"
	"github.com/torrentkit/bencode"
	"github.com/torrentkit/bencode/torrent"
	"github.com/torrentkit/bencode/wire"
)

func main() {
	root := &command.C{
		Name:  "bencode",
		Usage: "command args...",
		Commands: []*command.C{
			{
				Name:  "show",
				Usage: "show [file]",
				Help: `Pretty-print a bencode document.

The document is decoded into the generic value model and printed in
Go syntax. With no argument, or with "-", the document is read from
standard input.`,
				Run: command.Adapt(runShow),
			},
			{
				Name:  "dump",
				Usage: "dump [file]",
				Help:  "Dump the token stream of a bencode document.",
				Run:   command.Adapt(runDump),
			},
			{
				Name:  "canon",
				Usage: "canon [file]",
				Help: `Rewrite a bencode document in canonical form.

The document is decoded and re-encoded with dictionary keys sorted,
which makes byte-for-byte comparison of documents meaningful. The
result is written to standard output unless --out is given.`,
				SetFlags: command.Flags(flax.MustBind, &canonArgs),
				Run:      command.Adapt(runCanon),
			},
			{
				Name:  "infohash",
				Usage: "infohash [file]",
				Help:  "Print the info hash of a .torrent file.",
				Run:   command.Adapt(runInfoHash),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	env := root.NewEnv(nil)
	command.RunOrFail(env, os.Args[1:])
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		bs, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return bs, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return bs, nil
}

func runShow(env *command.Env, path string) error {
	bs, err := readInput(path)
	if err != nil {
		return err
	}
	v, err := bencode.DecodeValue(bs)
	if err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(v))
	return nil
}

func runDump(env *command.Env, path string) error {
	bs, err := readInput(path)
	if err != nil {
		return err
	}
	d := wire.NewDecoder(bytes.NewReader(bs))
	depth := 0
	for {
		t, err := d.Next()
		if err != nil {
			var werr *wire.Error
			if errors.As(err, &werr) && werr.Kind == wire.EndOfStream && depth == 0 {
				return nil
			}
			return err
		}
		if t.Kind == wire.End {
			if depth == 0 {
				return wire.NewError(wire.InvalidValue, "unexpected end marker outside any list or dict")
			}
			depth--
		}
		indent := strings.Repeat("  ", depth)
		switch t.Kind {
		case wire.Integer:
			fmt.Printf("%sinteger %d\n", indent, t.Int)
		case wire.ByteString:
			fmt.Printf("%sbytes   %q\n", indent, t.Bytes)
		case wire.ListStart:
			fmt.Printf("%slist\n", indent)
			depth++
		case wire.DictStart:
			fmt.Printf("%sdict\n", indent)
			depth++
		case wire.End:
			fmt.Printf("%send\n", indent)
		}
	}
}

var canonArgs struct {
	Out string `flag:"out,Write output to this file instead of stdout"`
}

func runCanon(env *command.Env, path string) error {
	bs, err := readInput(path)
	if err != nil {
		return err
	}
	v, err := bencode.DecodeValue(bs)
	if err != nil {
		return err
	}
	out, err := bencode.Marshal(v)
	if err != nil {
		return err
	}
	if canonArgs.Out == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(canonArgs.Out, out, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func runInfoHash(env *command.Env, path string) error {
	bs, err := readInput(path)
	if err != nil {
		return err
	}
	t, err := torrent.Parse(bs)
	if err != nil {
		return err
	}
	hash, err := t.InfoHash()
	if err != nil {
		return err
	}
	fmt.Printf("%x\n", hash)
	return nil
}
