// Package config loads provermon's settings.
//
// Sources, lowest precedence first: built-in defaults, a .env file, an
// optional config file (yaml, json, toml or env) and process environment
// variables. Keys are the environment variable names in lower case, so
// PROVER_ADDRESS and `prover_address: ...` in a yaml file are the same
// setting.
package config
