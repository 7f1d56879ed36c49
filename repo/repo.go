package repo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar = "GOVERNOR_PATH"

	envPrefix = "GOVERNOR"

	cfgFileName = "governor.toml"

	defaultRepoRoot = "~/.governor"

	LogsDirName = "logs"

	configFileMode = 0644

	DefaultVotesContractAddr = "0x0000000000000000000000000000000000001001"

	DefaultDAOAddr = "0x0000000000000000000000000000000000001002"
)

type Repo struct {
	Config *Config
}

// Exist reports whether anything is present at path. Errors other than
// not-exist count as present so callers never overwrite it.
func Exist(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}

func Load(repoRoot string) (*Repo, error) {
	rootPath, err := LoadRepoRootFromEnv(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(rootPath)

	cfgPath := filepath.Join(rootPath, cfgFileName)
	existConfig := Exist(cfgPath)
	if !existConfig {
		err := os.MkdirAll(rootPath, 0755)
		if err != nil {
			return nil, errors.Wrapf(err, "create repo %s", rootPath)
		}

		if err := writeConfigWithEnv(cfgPath, cfg); err != nil {
			return nil, errors.Wrap(err, "write default config")
		}
	} else {
		if err := CheckWritable(rootPath); err != nil {
			return nil, err
		}
		if err = readConfigFromFile(cfgPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "read %s", cfgPath)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Repo{
		Config: cfg,
	}, nil
}

func (r *Repo) Flush() error {
	if err := writeConfigWithEnv(filepath.Join(r.Config.RepoRoot, cfgFileName), r.Config); err != nil {
		return errors.Wrap(err, "write config")
	}

	return nil
}

func writeConfigWithEnv(cfgPath string, config any) error {
	if err := writeConfig(cfgPath, config); err != nil {
		return err
	}
	// read the file back so GOVERNOR_* overrides end up in it
	if err := readConfigFromFile(cfgPath, config); err != nil {
		return errors.Wrap(err, "apply environment overrides")
	}
	if err := writeConfig(cfgPath, config); err != nil {
		return err
	}
	return nil
}

func writeConfig(cfgPath string, config any) error {
	raw, err := MarshalConfig(config)
	if err != nil {
		return err
	}

	if err := os.WriteFile(cfgPath, []byte(raw), configFileMode); err != nil {
		return err
	}

	return nil
}

func MarshalConfig(config any) (string, error) {
	buf := bytes.NewBuffer([]byte{})
	e := toml.NewEncoder(buf)
	e.SetIndentTables(true)
	e.SetArraysMultiline(true)
	err := e.Encode(config)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func LoadRepoRootFromEnv(repoRoot string) (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	repoRoot = os.Getenv(rootPathEnvVar)
	var err error
	if len(repoRoot) == 0 {
		repoRoot, err = homedir.Expand(defaultRepoRoot)
	}
	return repoRoot, err
}

func readConfigFromFile(cfgFilePath string, config any) error {
	vp := viper.New()
	vp.SetConfigFile(cfgFilePath)
	vp.SetConfigType("toml")
	return readConfig(vp, config)
}

func readConfig(vp *viper.Viper, config any) error {
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	vp.SetEnvKeyReplacer(replacer)

	err := vp.ReadInConfig()
	if err != nil {
		return err
	}

	// percentages, counts and voting durations are written as strings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := vp.Unmarshal(config, hook); err != nil {
		return err
	}

	return nil
}

// CheckWritable makes sure files can be created in dir, creating dir
// when it is missing.
func CheckWritable(dir string) error {
	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return os.Mkdir(dir, 0775)
	case os.IsPermission(err):
		return errors.Errorf("cannot write to %s, incorrect permissions", dir)
	case err != nil:
		return err
	}

	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		if os.IsPermission(err) {
			return errors.Errorf("%s is not writable by the current user", dir)
		}
		return errors.Wrap(err, "check repo root is writable")
	}
	f.Close()
	return os.Remove(f.Name())
}
