// =============================================================================
// Donation Ledger - Source Profiles
// =============================================================================
//
// A source profile describes one kind of intake file: which filename prefix
// selects it, which adapter reads it, and how the raw bytes are laid out.
// Profiles live in sources_dir as one YAML file per source. When the directory
// holds no profiles the built-in defaults below are used.
//
// EXAMPLE (sources/paypal.yaml):
//
//   source_name: PayPal export
//   prefix: paypal
//   kind: PayPalExport
//   csv_settings:
//     delimiter: ","
//     encoding: UTF-8
//     column_count: 41
//
// =============================================================================

package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/donation-ledger/internal/model"
)

// Defaults shared by the built-in profiles and applySourceProfileDefaults.
const (
	DefaultPayPalColumnCount = 41
	DefaultDataMarker        = "donation_data"
	DefaultFirstDataRow      = 2
)

// SourceProfile holds the configuration for one intake source.
type SourceProfile struct {
	// SourceName is the human-readable name used in logs and reports.
	SourceName string `yaml:"source_name"`

	// Prefix selects the profile: a file whose name starts with Prefix
	// (case-insensitive) is read with this profile.
	Prefix string `yaml:"prefix"`

	// Kind selects the adapter.
	Kind model.SourceKind `yaml:"kind"`

	// CSVSettings applies to processor exports.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// LedgerSettings applies to check ledger workbooks.
	LedgerSettings LedgerSettings `yaml:"ledger_settings"`
}

// CSVSettings contains settings for parsing delimited exports.
type CSVSettings struct {
	// Delimiter is the field separator. Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "Windows-1252", "ISO-8859-1". Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// ColumnCount is the exact number of header columns the export must have.
	// A file with any other count is rejected as a whole.
	ColumnCount int `yaml:"column_count"`
}

// LedgerSettings contains settings for reading a check ledger workbook.
type LedgerSettings struct {
	// DataMarker is the workbook defined name covering the data region.
	DataMarker string `yaml:"data_marker"`

	// FirstDataRow is the first data row inside the region, 1-based.
	// Rows before it are headers. Default: 2
	FirstDataRow int `yaml:"first_data_row"`
}

// DefaultSourceProfiles returns the built-in PayPal and check ledger profiles.
func DefaultSourceProfiles() []SourceProfile {
	return []SourceProfile{
		{
			SourceName: "Check ledger",
			Prefix:     "checks",
			Kind:       model.KindCheckLedger,
			CSVSettings: CSVSettings{
				Delimiter: ",",
				Encoding:  "UTF-8",
			},
			LedgerSettings: LedgerSettings{
				DataMarker:   DefaultDataMarker,
				FirstDataRow: DefaultFirstDataRow,
			},
		},
		{
			SourceName: "PayPal export",
			Prefix:     "paypal",
			Kind:       model.KindPayPalExport,
			CSVSettings: CSVSettings{
				Delimiter:   ",",
				Encoding:    "UTF-8",
				ColumnCount: DefaultPayPalColumnCount,
			},
			LedgerSettings: LedgerSettings{
				DataMarker:   DefaultDataMarker,
				FirstDataRow: DefaultFirstDataRow,
			},
		},
	}
}

// LoadSourceProfiles loads all source profiles from a directory.
//
// PARAMETERS:
//   - dir: directory holding *.yaml / *.yml profile files. A missing or empty
//     directory yields the built-in defaults.
//
// RETURNS:
//   - Profiles sorted by prefix.
//   - An error if any profile file cannot be read or parsed.
func LoadSourceProfiles(dir string) ([]SourceProfile, error) {
	if dir == "" {
		return DefaultSourceProfiles(), nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, eris.Wrap(err, "config: list source profiles")
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, eris.Wrap(err, "config: list source profiles")
	}
	files = append(files, ymlFiles...)

	if len(files) == 0 {
		return DefaultSourceProfiles(), nil
	}

	profiles := make([]SourceProfile, 0, len(files))
	for _, file := range files {
		profile, err := loadSourceProfile(file)
		if err != nil {
			return nil, eris.Wrapf(err, "config: load %s", file)
		}
		profiles = append(profiles, *profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Prefix < profiles[j].Prefix
	})

	return profiles, nil
}

func loadSourceProfile(path string) (*SourceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read file")
	}

	var profile SourceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, eris.Wrap(err, "parse file")
	}

	if profile.Prefix == "" {
		profile.Prefix = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	switch profile.Kind {
	case model.KindPayPalExport, model.KindCheckLedger:
	default:
		return nil, eris.Errorf("unknown source kind %q", profile.Kind)
	}

	applySourceProfileDefaults(&profile)
	return &profile, nil
}

// applySourceProfileDefaults sets default values for a source profile.
func applySourceProfileDefaults(p *SourceProfile) {
	if p.SourceName == "" {
		p.SourceName = p.Prefix
	}
	if p.CSVSettings.Delimiter == "" {
		p.CSVSettings.Delimiter = ","
	}
	if p.CSVSettings.Encoding == "" {
		p.CSVSettings.Encoding = "UTF-8"
	}
	if p.CSVSettings.ColumnCount == 0 && p.Kind == model.KindPayPalExport {
		p.CSVSettings.ColumnCount = DefaultPayPalColumnCount
	}
	if p.LedgerSettings.DataMarker == "" {
		p.LedgerSettings.DataMarker = DefaultDataMarker
	}
	if p.LedgerSettings.FirstDataRow == 0 {
		p.LedgerSettings.FirstDataRow = DefaultFirstDataRow
	}
}

// Classify returns the profile whose prefix matches the file name, compared
// case-insensitively. The longest matching prefix wins. Nil means the file is
// unsupported.
func Classify(name string, profiles []SourceProfile) *SourceProfile {
	base := strings.ToLower(filepath.Base(name))

	var best *SourceProfile
	for i := range profiles {
		prefix := strings.ToLower(profiles[i].Prefix)
		if prefix == "" || !strings.HasPrefix(base, prefix) {
			continue
		}
		if best == nil || len(prefix) > len(best.Prefix) {
			best = &profiles[i]
		}
	}
	return best
}
