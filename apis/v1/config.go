package v1

// ServerConfig is the reportd configuration file.
type ServerConfig struct {
	// Listen is the HTTP listen address (default: ":8080").
	Listen string `yaml:"listen" json:"listen" validate:"required" template:""`

	// BasePath prefixes the reports routes, e.g. "/api" serves /api/reports.
	BasePath string `yaml:"base_path,omitempty" json:"base_path,omitempty" validate:"omitempty,startswith=/"`

	Reports ReportsSpec `yaml:"reports" json:"reports"`
	Archive ArchiveSpec `yaml:"archive" json:"archive"`
	HTTP    HTTPSpec    `yaml:"http" json:"http"`
}

// ReportsSpec configures where reports are discovered.
type ReportsSpec struct {
	// Directory is the flat directory holding generated report files.
	Directory string `yaml:"directory" json:"directory" validate:"required" template:""`

	// Extensions lists the allowed report file suffixes (default: [".xlsx"]).
	Extensions []string `yaml:"extensions,omitempty" json:"extensions,omitempty" validate:"omitempty,dive,startswith=.,min=2,excludesall=/\\"`
}

// ArchiveSpec configures the "download all" archive.
type ArchiveSpec struct {
	// Name is the download base name; the format extension is appended (default: "reports").
	Name string `yaml:"name,omitempty" json:"name,omitempty" validate:"omitempty,excludesall=/\\\"" template:""`

	// Format is the default archive format: zip, tar, tar.gz or tar.zst (default: zip).
	Format string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=zip tar tar.gz tar.zst"`

	// CompressionLevel ranges from 1 (fastest) to 9 (smallest) (default: 9).
	CompressionLevel int `yaml:"compression_level,omitempty" json:"compression_level,omitempty" validate:"min=1,max=9"`

	// MaxConcurrent caps archives streamed at once; 0 means unlimited (default: 4).
	MaxConcurrent *int `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty" validate:"omitempty,min=0"`
}

// HTTPSpec configures server timeouts, in seconds.
type HTTPSpec struct {
	ReadHeaderTimeout int `yaml:"read_header_timeout,omitempty" json:"read_header_timeout,omitempty" validate:"min=1"`
	IdleTimeout       int `yaml:"idle_timeout,omitempty" json:"idle_timeout,omitempty" validate:"min=1"`
	ShutdownTimeout   int `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty" validate:"min=1"`
}

const (
	DefaultListen            = ":8080"
	DefaultReportsDirectory  = "./storage/reports"
	DefaultReportExtension   = ".xlsx"
	DefaultArchiveName       = "reports"
	DefaultArchiveFormat     = "zip"
	DefaultCompressionLevel  = 9
	DefaultMaxConcurrent     = 4
	DefaultReadHeaderTimeout = 10
	DefaultIdleTimeout       = 120
	DefaultShutdownTimeout   = 15
)

// ApplyDefaults fills every unset field with its default value.
func (c *ServerConfig) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Reports.Directory == "" {
		c.Reports.Directory = DefaultReportsDirectory
	}
	if len(c.Reports.Extensions) == 0 {
		c.Reports.Extensions = []string{DefaultReportExtension}
	}
	if c.Archive.Name == "" {
		c.Archive.Name = DefaultArchiveName
	}
	if c.Archive.Format == "" {
		c.Archive.Format = DefaultArchiveFormat
	}
	if c.Archive.CompressionLevel == 0 {
		c.Archive.CompressionLevel = DefaultCompressionLevel
	}
	if c.Archive.MaxConcurrent == nil {
		maxConcurrent := DefaultMaxConcurrent
		c.Archive.MaxConcurrent = &maxConcurrent
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = DefaultIdleTimeout
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
}
