// Package autoload initialises the global logger from LOG_* environment
// variables when imported for side effects.
package autoload

import (
	"fmt"
	"os"

	configx "github.com/kalpit-S/ai-support-agent/pkg/config"
	logx "github.com/kalpit-S/ai-support-agent/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger autoload: %v, using defaults\n", err)
		logx.Init()
		return
	}
	logx.Init(*conf)
}
