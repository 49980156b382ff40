// Package config loads and validates monitor configuration.
//
// Configuration is YAML with ${VAR} environment expansion. A .env file next to
// the config file (or in the working directory) is loaded first, so secrets such
// as the exchange API key and the Telegram bot token can stay out of the YAML.
package config
