package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"rag-retrieval/internal/config"
	"rag-retrieval/internal/logging"
	"rag-retrieval/internal/merger"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		in      string
		out     string
		target  int
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&in, "in", "", "Raw chunk JSON array to read")
	flag.StringVar(&out, "out", "", "Merged chunk JSON array to write (default: corpus chunks path)")
	flag.IntVar(&target, "target", 0, "Target merged length in characters (default: merge.target_len)")
	flag.Parse()

	if in == "" {
		fmt.Println("Usage: mergechunks -in raw_chunks.json [-out chunks.json] [-target 1000]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, nil).With("component", "mergechunks")

	if out == "" {
		out = cfg.Corpus.Paths().Chunks
	}
	if target <= 0 {
		target = cfg.Merge.TargetLen
	}

	nRaw, nMerged, err := merger.MergeFile(in, out, target)
	if err != nil {
		logger.Error("merge failed", "in", in, "err", err)
		os.Exit(1)
	}
	logger.Info("merged chunks", "in", in, "out", out, "raw", nRaw, "merged", nMerged, "target_len", target)
}
