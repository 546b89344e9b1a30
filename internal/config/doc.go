// Package config loads clusterwatch settings from files, environment
// variables and command-line flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. Command-line flags
//  2. Environment variables (prefix CLUSTERWATCH_, dots become underscores)
//  3. Config file (config.yaml in ~/.config/clusterwatch, or --config)
//  4. Compiled defaults
//
// Example config.yaml:
//
//	kubeconfig: /home/dev/.kube/config
//	mode:
//	  fleet: true
//	  focused: false
//	reconcile:
//	  interval: 1h
//	backoff:
//	  initial: 1s
//	  max: 30s
//	metrics:
//	  address: ":9090"
package config
