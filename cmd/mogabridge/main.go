package main

import (
	"os"
	"strings"

	"github.com/Alia5/mogabridge/internal/cmd"
	"github.com/Alia5/mogabridge/internal/configpaths"
	"github.com/Alia5/mogabridge/internal/log"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli cmd.CLI
	ctx := kong.Parse(&cli,
		kong.Name("mogabridge"),
		kong.Description("Bridge MOGA Bluetooth controllers to virtual input devices"),
		kong.UsageOnError(),
		// flags and env override config values
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.SetupLogger(cli.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	rawLogger, rawFiles, err := log.SetupRaw(cli.Log)
	if err != nil {
		logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
	}
	closeFiles = append(closeFiles, rawFiles...)

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	for _, c := range closeFiles {
		_ = c.Close()
	}
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("MOGA_CONFIG")
}
