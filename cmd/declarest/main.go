// Command declarest validates API configuration documents and generates
// starter templates for them.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/fatih/color"

	"github.com/taoudi-abdelbasset/declarest"
)

// settings are the process-level knobs, resolved from the environment so
// CI pipelines can steer the CLI without flags.
type settings struct {
	ConfigPath string `env:"DECLAREST_CONFIG" envDefault:"config.json"`
	EnvFile    string `env:"DECLAREST_ENV_FILE" envDefault:".env"`
}

func main() {
	var cfg settings
	if err := env.Parse(&cfg); err != nil {
		fatal("parse environment: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ExitOnError)
		configPath := fs.String("config", cfg.ConfigPath, "path to the config document")
		envFile := fs.String("env-file", cfg.EnvFile, "path to the .env file (empty to skip)")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() > 0 {
			*configPath = fs.Arg(0)
		}
		validate(*configPath, *envFile)
	case "template":
		fs := flag.NewFlagSet("template", flag.ExitOnError)
		output := fs.String("o", "config.template.json", "output path for the template")
		_ = fs.Parse(os.Args[2:])
		writeTemplate(*output)
	case "version":
		fs := flag.NewFlagSet("version", flag.ExitOnError)
		verbose := fs.Bool("v", false, "print each build metadata field on its own line")
		_ = fs.Parse(os.Args[2:])
		if *verbose {
			info := declarest.GetVersionInfo()
			for _, key := range []string{"version", "commit", "build_date", "go_version"} {
				fmt.Printf("%-11s %s\n", key, info[key])
			}
		} else {
			fmt.Println(declarest.GetVersion())
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: declarest <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  validate [-config path] [-env-file path]   check a config document")
	fmt.Fprintln(os.Stderr, "  template [-o path]                         write a starter config")
	fmt.Fprintln(os.Stderr, "  version [-v]                               print version info")
}

func validate(configPath, envFile string) {
	cfg, err := declarest.LoadConfigEnv(configPath, envFile)
	if err != nil {
		color.Red("✗ configuration validation failed: %v", err)
		os.Exit(1)
	}

	color.Green("✓ configuration file %q is valid", configPath)
	for _, name := range cfg.APINames() {
		api, err := cfg.API(name)
		if err != nil {
			continue
		}
		fmt.Println()
		fmt.Printf("API: %s\n", name)
		fmt.Printf("  Base URL: %s\n", api.BaseURL)
		fmt.Printf("  Default Version: %s\n", api.DefaultVersion)
		authType := "none"
		if api.Auth != nil {
			authType = api.Auth.Type
		}
		fmt.Printf("  Auth Type: %s\n", authType)
		count := 0
		for _, endpoints := range api.Endpoints {
			count += len(endpoints)
		}
		fmt.Printf("  Endpoints: %d\n", count)
	}
}

const configTemplate = `{
  "example-api": {
    "base_url": "${API_BASE_URL:https://api.example.com}",
    "default_version": "v1",
    "timeout": 30,
    "auth": {
      "type": "bearer",
      "token": "${API_TOKEN}",
      "cache": {
        "type": "memory",
        "ttl": 3600
      }
    },
    "logging": {
      "log_requests": true,
      "log_responses": true,
      "log_sensitive_data": false
    },
    "endpoints": {
      "v1": {
        "get_user": {
          "path": "/users/{id}",
          "method": "GET",
          "auth_required": true,
          "cache": {"enabled": true, "ttl": 300},
          "params": {
            "id": {"type": "int", "required": true}
          }
        },
        "create_user": {
          "path": "/users",
          "method": "POST",
          "auth_required": true,
          "body_required": true,
          "retry": {"attempts": 3, "delay": 1.0, "backoff_factor": 2.0, "jitter": true}
        }
      }
    }
  }
}
`

func writeTemplate(path string) {
	if _, err := os.Stat(path); err == nil {
		color.Red("✗ refusing to overwrite existing file %q", path)
		os.Exit(1)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		color.Red("✗ write template: %v", err)
		os.Exit(1)
	}
	color.Green("✓ template written to %q", path)
}

func fatal(format string, args ...any) {
	color.Red("✗ "+format, args...)
	os.Exit(1)
}
