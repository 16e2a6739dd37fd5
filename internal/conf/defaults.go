// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "sleepmon")

	viper.SetDefault("logging.defaultlevel", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/sleepmon.log")
	viper.SetDefault("logging.file.level", "info")

	// Acoustic detector: 5 raw triggers within 1s confirm a peak, 100ms between peaks
	viper.SetDefault("acoustic.enabled", true)
	viper.SetDefault("acoustic.source", SourceGPIO)
	viper.SetDefault("acoustic.gpiopin", 17)
	viper.SetDefault("acoustic.activelow", false)
	viper.SetDefault("acoustic.device", "")
	viper.SetDefault("acoustic.levelthreshold", 60.0)
	viper.SetDefault("acoustic.threshold", 5)
	viper.SetDefault("acoustic.window", 1*time.Second)
	viper.SetDefault("acoustic.cooldown", 100*time.Millisecond)
	viper.SetDefault("acoustic.pollinterval", 1*time.Millisecond)

	viper.SetDefault("motion.enabled", true)
	viper.SetDefault("motion.source", SourceMQTT)
	viper.SetDefault("motion.gpiopin", 27)
	viper.SetDefault("motion.activelow", false)
	viper.SetDefault("motion.topic", "sleepmon/camera/motion")
	viper.SetDefault("motion.signaltimeout", 2*time.Second)
	viper.SetDefault("motion.cooldown", 3*time.Second)
	viper.SetDefault("motion.pollinterval", 100*time.Millisecond)

	viper.SetDefault("controller.idledelay", 5*time.Second)
	viper.SetDefault("controller.messagepause", 1*time.Second)
	viper.SetDefault("controller.toggleinterval", 500*time.Millisecond)

	viper.SetDefault("button.enabled", true)
	viper.SetDefault("button.gpiopin", 18)
	viper.SetDefault("button.activelow", false)
	viper.SetDefault("button.pollinterval", 10*time.Millisecond)
	viper.SetDefault("button.keyboard", false)

	viper.SetDefault("display.terminal", true)
	viper.SetDefault("display.log", true)

	viper.SetDefault("storage.logdir", "sleep_logs")
	viper.SetDefault("storage.index.enabled", true)
	viper.SetDefault("storage.index.type", IndexSQLite)
	viper.SetDefault("storage.index.sqlite.path", "sleepmon.db")
	viper.SetDefault("storage.index.mysql.host", "localhost")
	viper.SetDefault("storage.index.mysql.port", 3306)
	viper.SetDefault("storage.index.mysql.username", "")
	viper.SetDefault("storage.index.mysql.password", "")
	viper.SetDefault("storage.index.mysql.passwordfile", "")
	viper.SetDefault("storage.index.mysql.database", "sleepmon")

	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen", "0.0.0.0:5000")
	viper.SetDefault("api.cachettl", 30*time.Second)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("mqtt.enabled", true)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.topic", "sleepmon")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.passwordfile", "")
	viper.SetDefault("mqtt.retain", true)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.timeout", 10*time.Second)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("monitor.minfreepercent", 5.0)
}
