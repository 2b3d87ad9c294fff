package toolutils

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// ReadYaml decodes file into dest, rejecting unknown keys.
func ReadYaml(dest any, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("unable to open configuration file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f, yaml.Strict())
	if err = dec.Decode(dest); err != nil {
		return fmt.Errorf("unable to parse configuration file: %w", err)
	}
	return nil
}

// WriteYaml encodes src to the given file (stdout if nil).
func WriteYaml(out *os.File, src any) error {
	if out == nil {
		out = os.Stdout
	}
	b, err := yaml.Marshal(src)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}
