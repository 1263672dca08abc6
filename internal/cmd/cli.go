package cmd

import "github.com/Alia5/mogabridge/internal/log"

// CLI is the root command tree.
type CLI struct {
	ConfigFile string     `name:"config" help:"Path to a json, yaml or toml configuration file" type:"path" env:"MOGA_CONFIG"`
	Log        log.Config `embed:"" prefix:"log."`

	Bridge  Bridge        `cmd:"" default:"withargs" help:"Bridge a MOGA controller to the selected sinks"`
	Scan    Scan          `cmd:"" help:"List nearby devices and the controller generation they speak"`
	Monitor Monitor       `cmd:"" help:"Watch bluetoothd and controller connection changes"`
	Config  ConfigCommand `cmd:"" help:"Configuration file helpers"`
}
