package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// trafficHeaderRoom is the largest network header the traffic generator
// writes (IPv6).
const trafficHeaderRoom = 40

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateConfig, Config{})
	return v
}

// validateConfig checks the constraints spanning several sections.
func validateConfig(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)

	if c.Telemetry.Enabled && slices.Contains(c.Telemetry.Sinks, "badger") && c.Telemetry.BadgerPath == "" {
		sl.ReportError(c.Telemetry.BadgerPath, "Telemetry.BadgerPath", "BadgerPath", "required_with_badger", "")
	}

	// descriptors hold a whole packet in one buffer
	if c.Traffic.Packets > 0 && c.Traffic.PayloadSize+trafficHeaderRoom > c.Alloc.BufferSize {
		for _, ic := range c.Interfaces {
			if ic.Representation == "desc" || ic.Representation == "descriptor" {
				sl.ReportError(c.Traffic.PayloadSize, "Traffic.PayloadSize", "PayloadSize",
					"fits_buffer_size", fmt.Sprint(c.Alloc.BufferSize-trafficHeaderRoom))
				break
			}
		}
	}
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed '%s=%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
