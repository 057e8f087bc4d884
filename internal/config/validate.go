package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gea-smc/gea/internal/errors"
	"github.com/gea-smc/gea/internal/record"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("filename", validateFilename)
		validate = v
	})
	return validate
}

// validateFilename accepts a bare filename: no directory separators and not a dot entry.
func validateFilename(fl validator.FieldLevel) bool {
	return IsBareFilename(fl.Field().String())
}

// IsBareFilename reports whether name can be joined under remote.dir without escaping it.
func IsBareFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// Validate checks the config for errors and returns structured error messages.
// Only the first failing field is reported, with a suggestion pointing at its key.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig, "No config loaded", "Run 'gea init' to create one")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but gea only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade gea or lower the config version")
	}

	err := validatorInstance().Struct(cfg)
	if err == nil {
		return validateCrossField(cfg)
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.WrapWithCode(err, errors.ErrConfig, "Config validation failed", "Check gea.yaml")
	}

	fe := fieldErrs[0]
	key := fieldKey(fe)
	return errors.New(errors.ErrConfig, describe(key, fe), fmt.Sprintf("Fix '%s' in gea.yaml or set %s", key, EnvKey(key)))
}

func validateCrossField(cfg *Config) error {
	if cfg.SMTP.Host != "" && cfg.Notify.Recipient != "" && cfg.SMTP.From == "" {
		return errors.New(errors.ErrConfig,
			"smtp.from is empty and smtp.user is not set",
			"Set 'smtp.user' or 'smtp.from' so notifications have a sender")
	}

	seen := make(map[string]string, 4)
	for _, cat := range record.All {
		name := cfg.Files.Filename(cat)
		if other, ok := seen[name]; ok {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("files.%s and files.%s both point at %s", other, cat, name),
				"Give every category its own file")
		}
		seen[name] = cat.String()
	}
	return nil
}

// fieldKey turns "Config.remote.host" into "remote.host".
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(key string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, strings.ToLower(strings.Replace(fe.Param(), " ", " is ", 1)))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s (got %q)", key, strings.ReplaceAll(fe.Param(), " ", ", "), fmt.Sprint(fe.Value()))
	case "filename":
		return fmt.Sprintf("%s must be a bare filename without '/' (got %q)", key, fmt.Sprint(fe.Value()))
	case "email":
		return fmt.Sprintf("%s is not a valid email address (got %q)", key, fmt.Sprint(fe.Value()))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	}
	return fmt.Sprintf("%s failed the '%s' check", key, fe.Tag())
}

// EnvKey returns the environment variable that overrides a dotted config key.
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
