package config

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMissingConfig is returned when a required pipeline key has no value in
// the config file, the environment or the ledger's named settings.
var ErrMissingConfig = eris.New("missing required configuration")

// Named settings kept in the ledger. They fill pipeline keys the config file
// leaves empty.
//
// first_data_row is a sheet row with the header on row 1, so row 2 is ledger
// position 1.
const (
	SettingIntakeFolder    = "intake_folder"
	SettingProcessedFolder = "processed_folder"
	SettingOutputFolder    = "output_folder"
	SettingFirstDataRow    = "first_data_row"
	SettingAckTemplate     = "ack_template"
)

// SettingsSource reads named settings. The ledger store satisfies it.
type SettingsSource interface {
	Setting(ctx context.Context, name string) (string, bool, error)
}

// ResolveNamed fills empty pipeline keys from named settings. Keys that
// already have a value are left alone.
func (c *Config) ResolveNamed(ctx context.Context, src SettingsSource) error {
	strs := []struct {
		name  string
		field *string
	}{
		{SettingIntakeFolder, &c.Files.Intake},
		{SettingProcessedFolder, &c.Files.Processed},
		{SettingOutputFolder, &c.Files.Output},
		{SettingAckTemplate, &c.Ack.Template},
	}

	for _, s := range strs {
		if *s.field != "" {
			continue
		}
		v, ok, err := src.Setting(ctx, s.name)
		if err != nil {
			return eris.Wrapf(err, "config: read setting %s", s.name)
		}
		if ok {
			*s.field = strings.TrimSpace(v)
		}
	}

	if c.Ledger.InsertionPoint == 0 {
		v, ok, err := src.Setting(ctx, SettingFirstDataRow)
		if err != nil {
			return eris.Wrapf(err, "config: read setting %s", SettingFirstDataRow)
		}
		if ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return eris.Wrapf(err, "config: setting %s is not a number", SettingFirstDataRow)
			}
			if n < 2 {
				return eris.Errorf("config: setting %s is %d, row 1 is the header so the first data row is 2 or more", SettingFirstDataRow, n)
			}
			c.Ledger.InsertionPoint = n - 1
		}
	}

	return nil
}

// RequireKeys returns ErrMissingConfig naming every key whose value is blank.
func RequireKeys(values map[string]string) error {
	var missing []string
	for key, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return eris.Wrapf(ErrMissingConfig, "%s", strings.Join(missing, ", "))
}
