package main

import (
	"flag"
	"fmt"
	"os"
)

type AppFlags struct {
	URL              string
	TargetsFile      string
	GlobalConfigFile string
	Strategies       string
	JSONOutput       bool
}

func ParseFlags() AppFlags {
	urlFlag := flag.String("url", "", "Single gate URL to resolve.")
	urlFlagAlias := flag.String("u", "", "Alias for -url")

	targetsFile := flag.String("file", "", "Path to a text file containing gate URLs to resolve, one per line.")
	targetsFileAlias := flag.String("f", "", "Alias for -file")

	globalConfigFile := flag.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := flag.String("c", "", "Alias for -config")

	strategies := flag.String("strategies", "", "Comma-separated strategy allowlist (overrides config file if set).")

	jsonOutput := flag.Bool("json", false, "Print each resolution result as a JSON line.")

	flag.Parse()

	flags := AppFlags{
		Strategies: *strategies,
		JSONOutput: *jsonOutput,
	}

	if *urlFlag != "" {
		flags.URL = *urlFlag
	} else if *urlFlagAlias != "" {
		flags.URL = *urlFlagAlias
	}

	if *targetsFile != "" {
		flags.TargetsFile = *targetsFile
	} else if *targetsFileAlias != "" {
		flags.TargetsFile = *targetsFileAlias
	}

	if *globalConfigFile != "" {
		flags.GlobalConfigFile = *globalConfigFile
	} else if *globalConfigFileAlias != "" {
		flags.GlobalConfigFile = *globalConfigFileAlias
	}

	if flags.URL == "" && flags.TargetsFile == "" {
		fmt.Fprintln(os.Stderr, "[FATAL] either -url or -file is required")
		os.Exit(1)
	}

	return flags
}
