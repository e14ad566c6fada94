package config

const (
	defaultStagingDir = "~/.local/share/edfanon/staging"
	defaultLogDir     = "~/.local/share/edfanon/logs"
	defaultJournalDir = "~/.local/share/edfanon/journal"
	defaultMode       = ModeDiff
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"
	defaultRegion     = "us-east-1"
	defaultPort       = 5432
)

// Discovery modes.
const (
	ModeDiff  = "diff"
	ModeDrain = "drain"
)

// DefaultRedactFields lists the header fields redacted when the config does
// not override them.
func DefaultRedactFields() []string {
	return []string{"patientname", "birthdate", "patient_additional"}
}

// DefaultRedactReplacements lists the replacement values paired with
// DefaultRedactFields.
func DefaultRedactReplacements() []string {
	return []string{"", "", ""}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Storage: Storage{
			Source:      Bucket{Region: defaultRegion, PathStyle: true},
			Destination: Bucket{Region: defaultRegion, PathStyle: true},
		},
		Warehouse: Warehouse{
			Port: defaultPort,
		},
		Run: Run{
			Mode:               defaultMode,
			RedactFields:       DefaultRedactFields(),
			RedactReplacements: DefaultRedactReplacements(),
		},
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			JournalDir: defaultJournalDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
