package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Settings holds the application configuration.
type Settings struct {
	Port     int    `envconfig:"PORT" default:"8000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	TextModel             string `envconfig:"TEXT_MODEL" default:"gpt2"`
	TextBackendURL        string `envconfig:"TEXT_BACKEND_URL"`
	TextBackendToken      string `envconfig:"TEXT_BACKEND_TOKEN"`
	TextBackendTokenParam string `envconfig:"TEXT_BACKEND_TOKEN_PARAM"`

	ImageModel             string `envconfig:"IMAGE_MODEL" default:"runwayml/stable-diffusion-v1-5"`
	ImageBackendURL        string `envconfig:"IMAGE_BACKEND_URL"`
	ImageBackendToken      string `envconfig:"IMAGE_BACKEND_TOKEN"`
	ImageBackendTokenParam string `envconfig:"IMAGE_BACKEND_TOKEN_PARAM"`
	ImageDevice            string `envconfig:"IMAGE_DEVICE" default:"auto"`
	ImageHeight            int    `envconfig:"IMAGE_HEIGHT" default:"512"`
	ImageWidth             int    `envconfig:"IMAGE_WIDTH" default:"512"`
	ImageSteps             int    `envconfig:"IMAGE_STEPS" default:"20"`

	ProbeTimeout   time.Duration `envconfig:"BACKEND_PROBE_TIMEOUT" default:"3s"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10m"`

	Region        string        `envconfig:"AWS_REGION"`
	Bucket        string        `envconfig:"S3_BUCKET"`
	KeyPrefix     string        `envconfig:"S3_KEY_PREFIX" default:"generated"`
	PresignExpiry time.Duration `envconfig:"S3_PRESIGN_EXPIRY" default:"1h"`
	LocalStoreDir string        `envconfig:"LOCAL_STORE_DIR"`

	PromptsParam string `envconfig:"PROMPTS_PARAM"`

	SuppressCredentialWarning bool `envconfig:"SUPPRESS_CREDENTIAL_WARNING" default:"true"`
}

// Load reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func Load(files ...string) (*Settings, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.ImageHeight <= 0 || s.ImageWidth <= 0 {
		return fmt.Errorf("image dimensions must be positive, got %dx%d", s.ImageWidth, s.ImageHeight)
	}
	if s.ImageSteps <= 0 {
		return fmt.Errorf("image steps must be positive, got %d", s.ImageSteps)
	}
	if s.PresignExpiry <= 0 {
		return fmt.Errorf("presign expiry must be positive, got %s", s.PresignExpiry)
	}
	switch s.ImageDevice {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("unknown image device %q", s.ImageDevice)
	}
	return nil
}

// StorageConfigured reports whether some upload destination is set.
func (s *Settings) StorageConfigured() bool {
	return s.Bucket != "" || s.LocalStoreDir != ""
}
