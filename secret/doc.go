// Package secret resolves credential values from the environment and
// pluggable providers.
//
// A value is resolved in two steps:
//   - Strict environment expansion (see ExpandEnvStrict): ${VAR} must be set.
//   - If the expanded value is a reference of the form
//     "secretref:<provider>:<ref>", the named Provider supplies the value.
//
// Built-in providers:
//   - env:  secretref:env:AWS_SECRET_ACCESS_KEY reads an environment variable
//   - file: secretref:file:/run/secrets/aws_key reads a file, trimming
//     surrounding whitespace
//
// Resolved values are never logged; Credentials.String masks them.
package secret
