// internal/config/template.go
package config

// Template returns the starter .claude-agent.yaml written by "claude-agent init".
func Template() string {
	return `# Claude Agent Configuration

# Specification - provide either spec_file or goal
# spec_file: ./docs/SPEC.md
# goal: "Build a REST API with authentication"

# Number of features to generate (default: 50)
features: 50

# Tech stack - auto-detected if not specified
# Options: node, python
# stack: python

# Agent settings
agent:
  model: ` + DefaultModel + `
  # max_iterations: 10  # Limit iterations (default: unlimited)
  # auto_continue_delay: 3  # Seconds between sessions
  # session_timeout: 30m  # Kill a session that runs longer than this

# Validator settings
validator:
  enabled: true
  max_rejections: 3
  # model: claude-sonnet-4-5

# Security settings
security:
  extra_commands: []
  # Add additional allowed commands:
  # extra_commands:
  #   - docker
  #   - make

# Agent log (.claude-agent/logs/agent.log)
# logging:
#   level: info
#   include_allowed_commands: false

# OpenTelemetry export of session traces and HTTP metrics
# telemetry:
#   enabled: true
#   endpoint: localhost:4317
#   protocol: grpc  # or http/protobuf
`
}
