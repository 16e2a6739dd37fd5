package conf

// Signal source names
const (
	SourceGPIO       = "gpio"
	SourceMicrophone = "microphone"
	SourceMQTT       = "mqtt"
)

// Session index database types
const (
	IndexSQLite = "sqlite"
	IndexMySQL  = "mysql"
)

// redactedValue replaces passwords in printed settings.
const redactedValue = "[REDACTED]"
