package constants

import "errors"

// Target and configuration errors.
var (
	ErrNoTargetsConfigured  = errors.New("no targets configured, use 'strapi config set url <url>' to add one")
	ErrTargetNotFound       = errors.New("target not found in configuration")
	ErrNoBaseURLConfigured  = errors.New("no Strapi URL configured")
	ErrUnknownConfigKey     = errors.New("unknown configuration key")
	ErrTokenNotProvided     = errors.New("no API token provided")
	ErrNotInteractive       = errors.New("standard input is not a terminal, pass --token instead")
	ErrInvalidOutputFormat  = errors.New("invalid output format")
	ErrInvalidExportFormat  = errors.New("invalid export format")
	ErrContentTypesRequired = errors.New("at least one content type is required")
)

// Operation errors.
var (
	ErrImportFailed = errors.New("import finished with failed entities")
	ErrMissingArg   = errors.New("missing required argument")
)
