// Command kvcachectl is a small introspection tool for a kvstore
// Environment: it reports whether the on-disk schema version matches,
// dumps a key, or wipes a flavor. It exists to exercise the library
// end to end; the library itself takes no dependency on argument
// parsing.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"

	"github.com/tyty999/sorbet"
)

var cli struct {
	Path    string `help:"Directory holding the cache." required:""`
	Flavor  string `help:"Sub-database name." required:""`
	Version string `help:"Schema version this invocation expects/publishes." required:""`

	Stat struct{} `cmd:"" help:"Report session id and whether the on-disk version matches."`
	Get  struct {
		Key string `arg:"" help:"Key to look up."`
	} `cmd:"" help:"Print the value stored for a key, or nothing if absent."`
	Clear struct{} `cmd:"" help:"Wipe the flavor and republish Version."`
}

func main() {
	ctx := kong.Parse(&cli)
	var err error
	switch ctx.Command() {
	case "stat":
		err = runStat()
	case "get <key>":
		err = runGet()
	case "clear":
		err = runClear()
	default:
		err = fmt.Errorf("unrecognized command %q", ctx.Command())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvcachectl:", err)
		os.Exit(1)
	}
}

func runStat() (err error) {
	env, err := kvstore.Open(cli.Version, cli.Path, cli.Flavor)
	if err != nil {
		return err
	}
	defer env.Close()

	r, err := kvstore.WrapReader(env)
	if err != nil {
		return err
	}
	defer r.Abort()

	fmt.Printf("path=%s flavor=%s wrongVersion=%t sessionID=%d\n", cli.Path, cli.Flavor, r.WrongVersion(), r.SessionID())
	return nil
}

func runGet() (err error) {
	env, err := kvstore.Open(cli.Version, cli.Path, cli.Flavor)
	if err != nil {
		return err
	}
	defer env.Close()

	r, err := kvstore.WrapReader(env)
	if err != nil {
		return err
	}
	defer r.Abort()

	v, err := r.ReadString([]byte(cli.Get.Key))
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", v)
	return nil
}

func runClear() (err error) {
	env, err := kvstore.Open(cli.Version, cli.Path, cli.Flavor)
	if err != nil {
		return err
	}

	w, err := kvstore.WrapWriter(env)
	if err != nil {
		return err
	}
	if err := w.Clear(); err != nil {
		kvstore.AbortWriter(w)
		return err
	}
	if err := w.WriteString([]byte(kvstore.VersionKey), []byte(cli.Version)); err != nil {
		kvstore.AbortWriter(w)
		return err
	}
	env = kvstore.BestEffortCommit(w, log.Default())
	return env.Close()
}
