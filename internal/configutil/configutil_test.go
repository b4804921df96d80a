package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("name", "flag-default", "")
	cmd.Flags().Int("count", 3, "")
	cmd.Flags().Bool("on", false, "")
	cmd.Flags().Duration("wait", time.Second, "")
	cmd.Flags().Float64("temp", 0.5, "")
	cmd.Flags().StringArray("ids", nil, "")
	return cmd
}

func TestFlagOrViperPrecedence(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newCmd()
	if got := FlagOrViperString(cmd, "name", "test.name"); got != "flag-default" {
		t.Fatalf("default: got %q want %q", got, "flag-default")
	}

	viper.Set("test.name", "from-viper")
	viper.Set("test.count", 7)
	viper.Set("test.on", true)
	viper.Set("test.wait", "2m")
	viper.Set("test.temp", 0.2)
	if got := FlagOrViperString(cmd, "name", "test.name"); got != "from-viper" {
		t.Fatalf("viper: got %q want %q", got, "from-viper")
	}
	if got := FlagOrViperInt(cmd, "count", "test.count"); got != 7 {
		t.Fatalf("viper int: got %d", got)
	}
	if !FlagOrViperBool(cmd, "on", "test.on") {
		t.Fatalf("viper bool: got false")
	}
	if got := FlagOrViperDuration(cmd, "wait", "test.wait"); got != 2*time.Minute {
		t.Fatalf("viper duration: got %s", got)
	}
	if got := FlagOrViperFloat64(cmd, "temp", "test.temp"); got != 0.2 {
		t.Fatalf("viper float: got %v", got)
	}

	if err := cmd.Flags().Set("name", "from-flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if got := FlagOrViperString(cmd, "name", "test.name"); got != "from-flag" {
		t.Fatalf("flag: got %q want %q", got, "from-flag")
	}
}

func TestFlagOrViperStringArraySplitsCommas(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := newCmd()
	viper.Set("test.ids", "C1, C2,,C3")
	got := FlagOrViperStringArray(cmd, "ids", "test.ids")
	if len(got) != 3 || got[0] != "C1" || got[1] != "C2" || got[2] != "C3" {
		t.Fatalf("unexpected ids: %#v", got)
	}

	if err := cmd.Flags().Set("ids", "D1"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got = FlagOrViperStringArray(cmd, "ids", "test.ids")
	if len(got) != 1 || got[0] != "D1" {
		t.Fatalf("unexpected ids: %#v", got)
	}
}

func TestNilCommandFallsBackToViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("test.name", "v")
	if got := FlagOrViperString(nil, "", "test.name"); got != "v" {
		t.Fatalf("got %q", got)
	}
}
