package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Service struct {
	URL string `mapstructure:"url" yaml:"url"`
}
type Services struct {
	Emotion Service       `mapstructure:"emotion" yaml:"emotion"`
	ASR     Service       `mapstructure:"asr" yaml:"asr"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}
type Audio struct {
	SampleRate int `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int `mapstructure:"channels" yaml:"channels"`
}
type Media struct {
	FFmpeg  string `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe" yaml:"ffprobe"`
}
type Faces struct {
	// Denominator is "all" (every decoded frame) or "detected" (frames with a face).
	Denominator  string        `mapstructure:"denominator" yaml:"denominator"`
	StageTimeout time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
}
type Transcription struct {
	Backend      string        `mapstructure:"backend" yaml:"backend"` // service | openai
	ModelSize    string        `mapstructure:"model_size" yaml:"model_size"`
	StageTimeout time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
}
type Sincerity struct {
	Model        string        `mapstructure:"model" yaml:"model"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	StageTimeout time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
	Retries      uint64        `mapstructure:"retries" yaml:"retries"`
	// APIKey is only the environment fallback; callers may pass their own.
	APIKey string `mapstructure:"api_key" yaml:"-"`
}
type Server struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	UploadDir   string        `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadMB int64         `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	SweepEvery  time.Duration `mapstructure:"sweep_every" yaml:"sweep_every"`
	MaxAge      time.Duration `mapstructure:"max_age" yaml:"max_age"`
}
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}
type Root struct {
	Pipeline struct {
		Name    string `mapstructure:"name" yaml:"name"`
		WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	} `mapstructure:"pipeline" yaml:"pipeline"`
	Log           Log           `mapstructure:"log" yaml:"log"`
	Audio         Audio         `mapstructure:"audio" yaml:"audio"`
	Media         Media         `mapstructure:"media" yaml:"media"`
	Services      Services      `mapstructure:"services" yaml:"services"`
	Faces         Faces         `mapstructure:"faces" yaml:"faces"`
	Transcription Transcription `mapstructure:"transcription" yaml:"transcription"`
	Sincerity     Sincerity     `mapstructure:"sincerity" yaml:"sincerity"`
	Server        Server        `mapstructure:"server" yaml:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "sincerity-pipeline")
	v.SetDefault("pipeline.work_dir", os.TempDir())
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("media.ffmpeg", "ffmpeg")
	v.SetDefault("media.ffprobe", "ffprobe")
	v.SetDefault("services.emotion.url", "http://localhost:8001")
	v.SetDefault("services.asr.url", "http://localhost:8002")
	v.SetDefault("services.timeout", 60*time.Second)
	v.SetDefault("faces.denominator", "all")
	v.SetDefault("faces.stage_timeout", 10*time.Minute)
	v.SetDefault("transcription.backend", "service")
	v.SetDefault("transcription.model_size", "base")
	v.SetDefault("transcription.stage_timeout", 10*time.Minute)
	v.SetDefault("sincerity.model", "gpt-3.5-turbo")
	v.SetDefault("sincerity.max_tokens", 150)
	v.SetDefault("sincerity.base_url", "")
	v.SetDefault("sincerity.stage_timeout", 90*time.Second)
	v.SetDefault("sincerity.retries", 2)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.upload_dir", "uploads")
	v.SetDefault("server.max_upload_mb", 512)
	v.SetDefault("server.sweep_every", 10*time.Minute)
	v.SetDefault("server.max_age", time.Hour)
}

// Load reads the configuration. An explicit path must exist; otherwise the
// usual locations are tried and built-in defaults apply when none is found.
func Load(path string) (*Root, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SINCERITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("sincerity.api_key", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join("config", env))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
