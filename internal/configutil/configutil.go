// Package configutil resolves settings from cobra flags and viper keys.
// An explicitly set flag wins; otherwise the viper key; otherwise the flag default.
package configutil

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func hasFlag(cmd *cobra.Command, name string) bool {
	return cmd != nil && strings.TrimSpace(name) != "" && cmd.Flags().Lookup(name) != nil
}

func useViper(cmd *cobra.Command, flagName, key string) bool {
	if flagChanged(cmd, flagName) {
		return false
	}
	return strings.TrimSpace(key) != "" && viper.IsSet(key)
}

func FlagOrViperString(cmd *cobra.Command, flagName, key string) string {
	if useViper(cmd, flagName, key) {
		return viper.GetString(key)
	}
	if hasFlag(cmd, flagName) {
		v, _ := cmd.Flags().GetString(flagName)
		return v
	}
	return viper.GetString(key)
}

func FlagOrViperBool(cmd *cobra.Command, flagName, key string) bool {
	if useViper(cmd, flagName, key) {
		return viper.GetBool(key)
	}
	if hasFlag(cmd, flagName) {
		v, _ := cmd.Flags().GetBool(flagName)
		return v
	}
	return strings.TrimSpace(key) != "" && viper.GetBool(key)
}

func FlagOrViperInt(cmd *cobra.Command, flagName, key string) int {
	if useViper(cmd, flagName, key) {
		return viper.GetInt(key)
	}
	if hasFlag(cmd, flagName) {
		v, _ := cmd.Flags().GetInt(flagName)
		return v
	}
	return viper.GetInt(key)
}

func FlagOrViperFloat64(cmd *cobra.Command, flagName, key string) float64 {
	if useViper(cmd, flagName, key) {
		return viper.GetFloat64(key)
	}
	if hasFlag(cmd, flagName) {
		v, _ := cmd.Flags().GetFloat64(flagName)
		return v
	}
	return viper.GetFloat64(key)
}

func FlagOrViperDuration(cmd *cobra.Command, flagName, key string) time.Duration {
	if useViper(cmd, flagName, key) {
		return viper.GetDuration(key)
	}
	if hasFlag(cmd, flagName) {
		v, _ := cmd.Flags().GetDuration(flagName)
		return v
	}
	return viper.GetDuration(key)
}

// FlagOrViperStringArray also splits comma separated env values ("C1,C2").
func FlagOrViperStringArray(cmd *cobra.Command, flagName, key string) []string {
	var raw []string
	switch {
	case useViper(cmd, flagName, key):
		raw = viper.GetStringSlice(key)
	case hasFlag(cmd, flagName):
		raw, _ = cmd.Flags().GetStringArray(flagName)
	default:
		raw = viper.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
