package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"panstitch/internal/config"
)

func (r *Root) cmdConfig(ctx context.Context, args []string) error {
	_ = ctx
	if len(args) == 0 {
		return r.configShow()
	}
	switch args[0] {
	case "show":
		return r.configShow()
	case "reset":
		return r.configReset()
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func (r *Root) configShow() error {
	cfgPath := os.Getenv("PANSTITCH_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/panstitch/config.json"
	}
	fmt.Printf("Config file: %s\n\n", cfgPath)
	data, err := json.MarshalIndent(r.cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (r *Root) configReset() error {
	if err := config.Default().Save(); err != nil {
		return err
	}
	fmt.Printf("Default configuration written.\n")
	return nil
}

func (r *Root) cmdVersion() error {
	fmt.Printf("Panstitch v1.0.0-dev\n")
	fmt.Printf("Built with Go %s\n", runtime.Version())
	return nil
}
