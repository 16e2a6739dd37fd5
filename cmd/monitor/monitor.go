package monitor

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/tphakala/sleepmon/internal/analysis"
	"github.com/tphakala/sleepmon/internal/buildinfo"
	"github.com/tphakala/sleepmon/internal/conf"
)

// Command creates the command that runs the sleep monitor.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the sleep monitor",
		Long: "Wait for the start/stop button, record motion and sound events during the night " +
			"and save a scored sleep report when monitoring stops.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Display.Terminal && !term.IsTerminal(int(os.Stdout.Fd())) {
				// the status box only makes sense on an interactive terminal
				settings.Display.Terminal = false
			}
			conf.CheckDeviceGroups()
			return analysis.RealtimeMonitoring(settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Acoustic.Source, "acoustic-source", viper.GetString("acoustic.source"), "Acoustic trigger source (gpio or microphone)")
	cmd.Flags().StringVar(&settings.Motion.Source, "motion-source", viper.GetString("motion.source"), "Motion signal source (mqtt or gpio)")
	cmd.Flags().BoolVar(&settings.Button.Enabled, "button", viper.GetBool("button.enabled"), "Watch the GPIO start/stop button")
	cmd.Flags().BoolVarP(&settings.Button.Keyboard, "keyboard", "k", viper.GetBool("button.keyboard"), "Toggle monitoring with Enter on stdin")
	cmd.Flags().BoolVar(&settings.API.Enabled, "api", viper.GetBool("api.enabled"), "Serve the session API and dashboard data")
	cmd.Flags().StringVar(&settings.API.Listen, "listen", viper.GetString("api.listen"), "Listen address of the session API")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish reports and read motion over MQTT")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
