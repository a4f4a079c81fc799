package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/roach88/ledgerd/internal/cli"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	root := cli.NewRootCommand()
	root.Version = fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerd:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
