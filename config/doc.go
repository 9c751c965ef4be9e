// Package config loads clientcache settings from the environment.
//
// Load reads an optional .env file with godotenv, without overriding
// variables already set, and then parses the environment into Config with
// caarlos0/env. Credential variables may hold ${VAR} references or
// secretref values; they are resolved later by package secret.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	sess, err := awscache.NewSessionFromConfig(ctx, cfg)
package config
