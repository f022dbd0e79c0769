package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/plancheck/internal/logger"
	"github.com/ppiankov/plancheck/internal/model"
)

// version is set at build time with -ldflags "-X github.com/ppiankov/plancheck/internal/cli.version=..."
var version = "0.3.0-dev"

var (
	cfgFile  string
	envFile  string
	verbose  bool
	logLevel string

	// cfg is the effective configuration, loaded before any command runs
	cfg = model.DefaultConfig()
)

// envAliases are the unprefixed variables existing deployments already set
var envAliases = map[string][]string{
	"llm.model":             {"OPENAI_MODEL"},
	"extraction.dev_mode":   {"DEV_MODE"},
	"server.port":           {"PORT"},
	"store.database_url":    {"DATABASE_URL"},
	"store.rules_dir":       {"RULES_DIR"},
	"log.level":             {"LOG_LEVEL"},
	"cache.directory":       {"CACHE_DIR"},
	"http.user_agent":       {"USER_AGENT"},
	"http.http_proxy":       {"HTTP_PROXY"},
	"http.https_proxy":      {"HTTPS_PROXY"},
	"http.no_proxy":         {"NO_PROXY"},
	"extraction.chunk_size": {"CHUNK_SIZE"},
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "plancheck",
	Short: "plancheck - check drawing text against machine-readable building-code rules",
	Long: `plancheck checks the text of architectural drawings against rule sets derived
from building codes, and extracts such rule sets from code documents with a
language model.

Checks are deterministic: every rule is reported as pass, fail, unhandled or
invalid with the evidence that decided it. Generated rules are drafts and
are flagged for human review.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return logger.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("plancheck %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.plancheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().String("rules-dir", "", "directory of rule set files (file store)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store.rules_dir", rootCmd.PersistentFlags().Lookup("rules-dir"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the dotenv file, config file and ENV variables
func initConfig() {
	// A missing .env is normal; only an explicit --env-file must exist
	if err := godotenv.Load(envFile); err != nil && rootCmd.PersistentFlags().Changed("env-file") {
		fmt.Fprintf(os.Stderr, "Error loading env file %s: %v\n", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".plancheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	configureViper(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper sets up environment lookup: PLANCHECK_LLM_PROVIDER -> llm.provider,
// plus the unprefixed aliases
func configureViper(v *viper.Viper) {
	v.SetEnvPrefix("PLANCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	registerDefaults(v, "", reflect.ValueOf(model.DefaultConfig()))
	for key, aliases := range envAliases {
		envs := append([]string{"PLANCHECK_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// registerDefaults declares every config key to viper so environment variables
// are seen by Unmarshal even when no config file sets them.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type().PkgPath() != "time" {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// loadConfig merges defaults, config file, environment and flags into cfg
func loadConfig() error {
	loaded, err := decodeConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

func decodeConfig(v *viper.Viper) (model.Config, error) {
	loaded := model.DefaultConfig()
	if err := v.Unmarshal(&loaded); err != nil {
		return model.Config{}, fmt.Errorf("load config: %w", err)
	}
	return loaded, nil
}
