package app

import (
	"time"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
	mapstruc "github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/cloudfoundry/disk-planner/platform/disk"
	"github.com/cloudfoundry/disk-planner/workflow"
)

type Config struct {
	LogLevel          string        `mapstructure:"log_level"`
	DefaultSectorSize int64         `mapstructure:"default_sector_size"`
	ScratchDir        string        `mapstructure:"scratch_dir"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`

	Unmount UnmountConfig `mapstructure:"unmount"`
	Settle  SettleConfig  `mapstructure:"settle"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Mount   MountConfig   `mapstructure:"mount"`
	Journal JournalConfig `mapstructure:"journal"`
}

type UnmountConfig struct {
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SettleConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type RefreshConfig struct {
	ShortDelay        time.Duration `mapstructure:"short_delay"`
	LongDelay         time.Duration `mapstructure:"long_delay"`
	FormatShortDelay  time.Duration `mapstructure:"format_short_delay"`
	FormatLongDelay   time.Duration `mapstructure:"format_long_delay"`
	TerminalExitDelay time.Duration `mapstructure:"terminal_exit_delay"`
}

type MountConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	GrubDir string `mapstructure:"grub_dir"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty disables the journal.
	Path string `mapstructure:"path"`
}

func DefaultConfig() Config {
	refresh := workflow.DefaultRefreshPolicy()
	sequencer := workflow.DefaultSequencerOptions()
	synthesizer := disk.DefaultSynthesizerOptions()

	return Config{
		LogLevel:          "error",
		DefaultSectorSize: disk.DefaultSectorSize,
		ScratchDir:        "/tmp",
		QueryTimeout:      5 * time.Second,
		Unmount: UnmountConfig{
			RetryDelay: sequencer.UnmountRetryDelay,
			Timeout:    synthesizer.UnmountTimeout,
		},
		Settle: SettleConfig{
			Delay: sequencer.SettleDelay,
		},
		Refresh: RefreshConfig{
			ShortDelay:        refresh.ShortDelay,
			LongDelay:         refresh.LongDelay,
			FormatShortDelay:  refresh.FormatShortDelay,
			FormatLongDelay:   refresh.FormatLongDelay,
			TerminalExitDelay: refresh.TerminalExitDelay,
		},
		Mount: MountConfig{
			BaseDir: synthesizer.MountBaseDir,
			GrubDir: synthesizer.GrubMountDir,
		},
	}
}

// LoadConfigFromPath reads a YAML config over the defaults. Keys that are
// absent keep their default value.
func LoadConfigFromPath(fs boshsys.FileSystem, path string) (Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	bytes, err := fs.ReadFile(path)
	if err != nil {
		return config, bosherr.WrapError(err, "Reading file")
	}

	var raw map[string]interface{}
	err = yaml.Unmarshal(bytes, &raw)
	if err != nil {
		return config, bosherr.WrapError(err, "Parsing YAML")
	}

	decoder, err := mapstruc.NewDecoder(&mapstruc.DecoderConfig{
		DecodeHook:  mapstruc.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &config,
	})
	if err != nil {
		return config, bosherr.WrapError(err, "Building config decoder")
	}

	err = decoder.Decode(raw)
	if err != nil {
		return config, bosherr.WrapError(err, "Loading file")
	}

	err = config.Validate()
	if err != nil {
		return config, bosherr.WrapError(err, "Validating config")
	}

	return config, nil
}

func (c Config) Validate() error {
	_, err := boshlog.Levelify(c.LogLevel)
	if err != nil {
		return err
	}

	if c.DefaultSectorSize <= 0 || c.DefaultSectorSize&(c.DefaultSectorSize-1) != 0 {
		return bosherr.Errorf("default_sector_size must be a positive power of two, got %d", c.DefaultSectorSize)
	}

	if c.ScratchDir == "" {
		return bosherr.Error("scratch_dir must not be empty")
	}

	return nil
}

func (c Config) RefreshPolicy() workflow.RefreshPolicy {
	return workflow.RefreshPolicy{
		ShortDelay:        c.Refresh.ShortDelay,
		LongDelay:         c.Refresh.LongDelay,
		FormatShortDelay:  c.Refresh.FormatShortDelay,
		FormatLongDelay:   c.Refresh.FormatLongDelay,
		TerminalExitDelay: c.Refresh.TerminalExitDelay,
	}
}

func (c Config) SequencerOptions() workflow.SequencerOptions {
	return workflow.SequencerOptions{
		UnmountAttempts:   workflow.DefaultSequencerOptions().UnmountAttempts,
		UnmountRetryDelay: c.Unmount.RetryDelay,
		SettleDelay:       c.Settle.Delay,
	}
}

func (c Config) SynthesizerOptions() disk.SynthesizerOptions {
	return disk.SynthesizerOptions{
		UnmountTimeout: c.Unmount.Timeout,
		SettleSleep:    c.Settle.Delay,
		MountBaseDir:   c.Mount.BaseDir,
		GrubMountDir:   c.Mount.GrubDir,
	}
}
