// Package config handles loading and validating Gatehouse configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with GATEHOUSE_* environment variables
//   - Validation of required fields, reporting every problem at once
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, webhook URLs) should be set via
//     environment variables or a .env file, not committed config
//   - The JWT secret is only required once operator auth is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Site.Name, cfg.Storage.Provider)
package config
