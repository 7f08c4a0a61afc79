package main

import (
	"os"

	"github.com/kalpit-S/ai-support-agent/cmd"
	_ "github.com/kalpit-S/ai-support-agent/pkg/logger/autoload"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
