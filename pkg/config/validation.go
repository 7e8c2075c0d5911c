package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/ferry/internal/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the cross-field rules tags
// cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fieldRule(fe), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled {
		for _, name := range cfg.Telemetry.Profiling.ProfileTypes {
			if !telemetry.ValidProfileType(name) {
				return fmt.Errorf("telemetry.profiling.profile_types: unknown profile type %q", name)
			}
		}
	}

	if cfg.Destination.Driver == DriverS3 && cfg.Destination.S3.Bucket == "" {
		return errors.New("destination.s3.bucket is required for the s3 driver")
	}

	if cfg.Journal.Enabled {
		if err := cfg.Journal.Validate(); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	return nil
}

func fieldRule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
