package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "COURSEAPP"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// progress backends
const (
	ProgressBackendNone = "none"
	ProgressBackendSQL  = "sql"
	ProgressBackendKV   = "kv"
)

// RemoteConfig connection to the remote catalog backend, leave the driver
// empty to run local only
type RemoteConfig struct {
	Driver          string        `mapstructure:"driver" json:"driver" yaml:"driver" validate:"omitempty,oneof=mysql postgres"` // driver name
	Host            string        `mapstructure:"host" json:"host" yaml:"host"`                                                 // server host
	MaxConn         int32         `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                       // maximum opening connections number
	Password        string        `mapstructure:"password" json:"-" yaml:"password"`                                            // db password
	Port            int           `mapstructure:"port" json:"port" yaml:"port"`                                                 // server port
	Protocol        string        `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"`  // connection protocol, eg.tcp
	Query           string        `mapstructure:"query" json:"query" yaml:"query"`                                              // DSN query parameter
	Schema          string        `mapstructure:"schema" json:"schema" yaml:"schema"`                                           // use schema
	User            string        `mapstructure:"username" json:"username" yaml:"username"`                                     // db username
	HydrateInterval time.Duration `mapstructure:"hydrate_interval" json:"hydrate_interval" yaml:"hydrate_interval"`             // periodic read-repair, 0 disables
	QueueSize       int           `mapstructure:"queue_size" json:"queue_size" yaml:"queue_size" validate:"min=1"`              // pending reconciliation jobs
}

// Available reports whether a remote backend is configured. It inspects
// configuration only and never touches the network.
func (rc *RemoteConfig) Available() bool {
	return rc.Driver != "" && rc.Host != "" && rc.User != "" && rc.Schema != ""
}

// ProgressConfig playback progress policy
type ProgressConfig struct {
	Backend          string        `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=none sql kv"`
	PollInterval     time.Duration `mapstructure:"poll_interval" json:"poll_interval" yaml:"poll_interval" validate:"min=1"`
	SaveInterval     int           `mapstructure:"save_interval" json:"save_interval" yaml:"save_interval" validate:"min=1"` // position seconds between saves
	CompletionRatio  float64       `mapstructure:"completion_ratio" json:"completion_ratio" yaml:"completion_ratio" validate:"gt=0,lte=1"`
	CompletionMargin float64       `mapstructure:"completion_margin" json:"completion_margin" yaml:"completion_margin" validate:"min=0"` // seconds before the end
	SkipAhead        float64       `mapstructure:"skip_ahead" json:"skip_ahead" yaml:"skip_ahead" validate:"min=0"`                      // resume threshold in seconds
}

// AppConfig App option object
type AppConfig struct {
	AppID          string         `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string         `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int            `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string         `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration  `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Remote         RemoteConfig   `mapstructure:"remote" json:"remote" yaml:"remote"`
	Progress       ProgressConfig `mapstructure:"progress" json:"progress" yaml:"progress"`
	Logging        struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength int `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=4"` // length of the random suffix of fallback ids
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"` // bind host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"` // bind listen port
		Password string `mapstructure:"password" json:"-" yaml:"password"`
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// RemoteAvailable pure predicate over configuration
func (c *AppConfig) RemoteAvailable() bool {
	return c.Remote.Available()
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "course-catalog", "application identifier")
	pflag.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("request_timeout", 30*time.Second, "request timeout(m, s and h units are supported), eg.30s")

	// remote backend
	pflag.String("remote.driver", "", "remote backend driver (mysql or postgres), leave empty to run local only")
	pflag.String("remote.host", "127.0.0.1", "remote database host")
	pflag.Int("remote.port", 5432, "remote database port")
	pflag.String("remote.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	pflag.String("remote.username", "", "remote database username")
	pflag.String("remote.password", "", "remote database password")
	pflag.String("remote.schema", "", "remote database schema")
	pflag.String("remote.query", "", `additional DSN query parameters('?' is auto prefixed), if you work with mysql and wish to
work with time.Time, you may specify "parseTime=true"`)
	pflag.Int32("remote.maxconn", 20, "max connection count")
	pflag.Duration("remote.hydrate_interval", 0, "periodic full re-hydration from the remote, 0 disables")
	pflag.Int("remote.queue_size", 256, "max pending reconciliation jobs")

	// progress
	pflag.String("progress.backend", ProgressBackendNone, "progress persistence backend: none, sql or kv")
	pflag.Duration("progress.poll_interval", 2*time.Second, "player position polling interval")
	pflag.Int("progress.save_interval", 10, "playback seconds between two progress saves")
	pflag.Float64("progress.completion_ratio", 0.95, "fraction of the duration after which a lesson counts as completed")
	pflag.Float64("progress.completion_margin", 3, "seconds before the end after which a lesson counts as completed")
	pflag.Float64("progress.skip_ahead", 5, "saved positions beyond this many seconds are resumed")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.id_length", 12, "length of the random suffix of fallback entity ids")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "kv host")
	pflag.Int("kv.port", 6379, "kv server port")
	pflag.String("kv.password", "", "kv server password")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("mapstructure")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	var msg []string
	if err := validate.Struct(config); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, field := range err.(validator.ValidationErrors) {
			namespace := field.Namespace()
			fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
			switch field.Tag() {
			case "required":
				msg = append(msg, fmt.Sprintf("%s is required", fieldName))
			case "oneof":
				msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
			default:
				msg = append(msg, fmt.Sprintf("%s failed on %s=%s", fieldName, field.Tag(), field.Param()))
			}
		}
	}
	if config.Progress.Backend == ProgressBackendSQL && !config.RemoteAvailable() {
		msg = append(msg, "progress.backend=sql requires a configured remote backend")
	}
	if len(msg) == 0 {
		return nil
	}
	return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
}
