// Package config carries the runtime settings of a fabrpc process: the Nexus
// control-plane listener, and the per-Rpc session limits and resource
// budgets. Settings layer defaults, then the fabrpc.yaml config file, then
// explicit mutation by the caller; InitConfig wires the layers up through
// viper.
package config
